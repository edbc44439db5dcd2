// Command seed populates the database with development data: a handful of
// rooms, fake users, and room chatter.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"weebchat/internal/config"
	"weebchat/internal/database"
	"weebchat/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

var roomNames = []string{
	"General", "Anime", "Manga", "Seasonal", "Gaming",
	"Music", "Fan Art", "Recommendations", "Off Topic",
}

var chatter = []string{
	"Just finished episode 12, that fight scene was incredible",
	"The manga goes way harder than the adaptation",
	"Anyone watching the new season this fall?",
	"That plot twist in the last arc caught me completely off guard",
	"The villain this season is actually sympathetic for once",
	"Season 2 when?",
	"The animation budget clearly went to the final battle",
	"Hot take: the filler episodes were actually good",
}

func main() {
	numUsers := flag.Int("users", 20, "number of users to create")
	numMessages := flag.Int("messages", 200, "number of messages to create")
	clean := flag.Bool("clean", false, "delete existing data first")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}

	if *clean {
		cleanTables(db)
	}

	rooms := seedRooms(db)
	users := seedUsers(db, *numUsers)
	seedMessages(db, rooms, users, *numMessages)

	log.Printf("Seeded %d rooms, %d users, %d messages", len(rooms), len(users), *numMessages)
}

func cleanTables(db *gorm.DB) {
	for _, model := range []interface{}{
		&models.Report{}, &models.ModerationLog{}, &models.Message{},
		&models.ChatRoom{}, &models.User{},
	} {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
			log.Fatalf("Failed to clean table: %v", err)
		}
	}
}

func seedRooms(db *gorm.DB) []models.ChatRoom {
	rooms := make([]models.ChatRoom, 0, len(roomNames))
	for _, name := range roomNames {
		room := models.ChatRoom{RoomName: name}
		if err := db.Create(&room).Error; err != nil {
			log.Fatalf("Failed to create room %q: %v", name, err)
		}
		rooms = append(rooms, room)
	}
	return rooms
}

func seedUsers(db *gorm.DB, n int) []models.User {
	users := make([]models.User, 0, n)
	for i := 0; i < n; i++ {
		user := models.User{
			Uid:         fmt.Sprintf("seed-%s", gofakeit.UUID()),
			Email:       gofakeit.Email(),
			DisplayName: gofakeit.Username(),
			LastLoginAt: gofakeit.DateRange(time.Now().AddDate(0, -1, 0), time.Now()),
		}
		if err := db.Create(&user).Error; err != nil {
			log.Fatalf("Failed to create user: %v", err)
		}
		users = append(users, user)
	}
	return users
}

func seedMessages(db *gorm.DB, rooms []models.ChatRoom, users []models.User, n int) {
	if len(rooms) == 0 || len(users) == 0 {
		return
	}
	for i := 0; i < n; i++ {
		room := rooms[rand.Intn(len(rooms))]
		user := users[rand.Intn(len(users))]

		content := chatter[rand.Intn(len(chatter))]
		if rand.Intn(4) == 0 {
			content = gofakeit.Sentence(rand.Intn(12) + 4)
		}

		msg := models.Message{
			ChatRoomID: room.ID,
			SenderUid:  user.Uid,
			UserID:     user.ID,
			Content:    content,
			SentAt:     gofakeit.DateRange(time.Now().AddDate(0, 0, -7), time.Now()),
		}
		if err := db.Create(&msg).Error; err != nil {
			log.Fatalf("Failed to create message: %v", err)
		}
	}
}
