package model

type Post struct {
	ID    int64
	Title string
	Body  string
	User  *User `db:"user_id,fk"`
}
