package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var seedCities = []string{"London", "Manchester", "Bristol", "Leeds"}

// SeedTestData resets the database and populates it with demo profiles,
// swipes, matches and letters.
//
// Behavior:
//  1. Clears all tables.
//  2. Creates 20 profiles (10 male, 10 female) across a few cities.
//  3. Creates a handful of pending requests, one active chat with messages,
//     a reciprocal liked letter pair, and a few coupons.
//
// Compatible with both MySQL and SQLite.
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	// --- Fresh start ---
	for _, table := range []string{"messages", "matches", "letters", "swipes", "coupons", "profiles", "accounts"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	switch db.Dialector.Name() {
	case "mysql":
		for _, table := range []string{"accounts", "matches", "messages", "letters", "swipes", "coupons"} {
			db.Exec("ALTER TABLE " + table + " AUTO_INCREMENT = 1")
		}
	case "sqlite":
		db.Exec("DELETE FROM sqlite_sequence")
	}

	log.Println("Cleared existing data")

	now := time.Now().UTC()

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	// --- Accounts + Profiles (10 male, 10 female) ---
	for i := 1; i <= 20; i++ {
		gender := "male"
		if i > 10 {
			gender = "female"
		}

		acct := Account{
			ID:           uint64(i),
			Username:     fmt.Sprintf("user%d", i),
			Email:        fmt.Sprintf("user%d@example.com", i),
			PasswordHash: string(hash),
			Active:       true,
			LastLoginAt:  now.Add(-time.Duration(r.Intn(500)) * time.Hour),
		}
		if err := db.Create(&acct).Error; err != nil {
			return fmt.Errorf("failed to seed account: %w", err)
		}

		p := Profile{
			UserID:       uint64(i),
			DisplayName:  fmt.Sprintf("user%d", i),
			Age:          21 + r.Intn(15),
			Gender:       gender,
			City:         seedCities[r.Intn(len(seedCities))],
			Occupation:   "engineer",
			Tagline:      "here for the letters",
			MentalTags:   StringList{"calm", "curious"},
			LookingFor:   StringList{"relationship"},
			LoveLanguage: "words",
			TextStyle:    "long-form",
			IsActive:     true,
		}
		if err := db.Create(&p).Error; err != nil {
			return fmt.Errorf("failed to seed profile: %w", err)
		}
	}
	log.Println("Seeded 20 profiles.")

	// --- Pending match requests (male -> female swipes) ---
	for i := 1; i <= 5; i++ {
		target := uint64(10 + i)
		swipe := Swipe{ActorID: uint64(i), TargetID: target, Action: SwipeLike}
		if err := db.Create(&swipe).Error; err != nil {
			return fmt.Errorf("failed to seed swipe: %w", err)
		}
		m := Match{
			User1ID:    uint64(i),
			User2ID:    target,
			Status:     MatchPendingRequest,
			User1Liked: true,
			ExpiresAt:  now.Add(7 * 24 * time.Hour),
		}
		if err := db.Create(&m).Error; err != nil {
			return fmt.Errorf("failed to seed match: %w", err)
		}
	}

	// --- One active chat with traffic (6 <-> 16) ---
	active := Match{
		User1ID:    6,
		User2ID:    16,
		Status:     MatchActive,
		User1Liked: true,
		User2Liked: true,
		Viewed:     true,
		ExpiresAt:  now.Add(7 * 24 * time.Hour),
	}
	if err := db.Create(&active).Error; err != nil {
		return fmt.Errorf("failed to seed active match: %w", err)
	}
	for j := 0; j < 4; j++ {
		sender, receiver := uint64(6), uint64(16)
		if j%2 == 1 {
			sender, receiver = receiver, sender
		}
		msg := Message{
			MatchID:    active.ID,
			SenderID:   sender,
			ReceiverID: receiver,
			Content:    fmt.Sprintf("seed message %d", j+1),
		}
		if err := db.Create(&msg).Error; err != nil {
			return fmt.Errorf("failed to seed message: %w", err)
		}
	}

	// --- A reciprocal liked letter pair (7 <-> 17), one decision away from a match ---
	letters := []Letter{
		{SenderID: 7, RecipientID: 17, Content: "seed letter out", Status: LetterLiked},
		{SenderID: 17, RecipientID: 7, Content: "seed letter back", Status: LetterPending},
	}
	for i := range letters {
		if err := db.Create(&letters[i]).Error; err != nil {
			return fmt.Errorf("failed to seed letter: %w", err)
		}
	}

	// --- Coupons ---
	for _, code := range []string{"WELCOME7", "LETTERS4EVER"} {
		if err := db.Create(&Coupon{Code: code, Active: true}).Error; err != nil {
			return fmt.Errorf("failed to seed coupon: %w", err)
		}
	}

	log.Println("Seeding completed.")
	return nil
}

// SeedMinimalTestData wipes the DB and inserts a small deterministic dataset
// for repeatable tests: three profiles and nothing else.
func SeedMinimalTestData(db *gorm.DB) error {
	for _, table := range []string{"messages", "matches", "letters", "swipes", "coupons", "profiles", "accounts"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
	}

	profiles := []Profile{
		{UserID: 1, DisplayName: "user1", Age: 25, Gender: "male", City: "London", IsActive: true},
		{UserID: 2, DisplayName: "user2", Age: 26, Gender: "female", City: "London", IsActive: true},
		{UserID: 3, DisplayName: "user3", Age: 27, Gender: "female", City: "Leeds", IsActive: true},
	}
	if err := db.Create(&profiles).Error; err != nil {
		return err
	}

	return nil
}
