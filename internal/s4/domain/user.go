package domain

import "time"

type User struct {
	Username         string
	PasswordHash     string // argon2id encoded
	SecurityQuestion string
	SecurityAnswer   string
	Secret           string // application secret handed out at registration
	EntryDirectoryID int64
	CreatedAt        time.Time
}
