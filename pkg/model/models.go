package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PostType string

const (
	PostTypeNote PostType = "note"
	PostTypeJob  PostType = "job"
)

// Category is the single shared enumeration used by both create and update
// validation.
type Category string

const (
	CategoryAcademic Category = "academic"
	CategoryCareer   Category = "career"
	CategoryEvents   Category = "events"
	CategorySocial   Category = "social"
	CategoryHousing  Category = "housing"
	CategoryGeneral  Category = "general"
)

var Categories = []Category{
	CategoryAcademic,
	CategoryCareer,
	CategoryEvents,
	CategorySocial,
	CategoryHousing,
	CategoryGeneral,
}

type User struct {
	ID         primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Username   string               `bson:"username" json:"username"`
	Email      string               `bson:"email" json:"email"`
	Password   string               `bson:"password" json:"-"`
	FullName   string               `bson:"full_name" json:"fullName"`
	Bio        string               `bson:"bio" json:"bio"`
	Avatar     string               `bson:"avatar" json:"avatar"`
	University string               `bson:"university" json:"university"`
	Major      string               `bson:"major" json:"major"`
	Year       int                  `bson:"year" json:"year"`
	Followers  []primitive.ObjectID `bson:"followers" json:"followers"`
	Following  []primitive.ObjectID `bson:"following" json:"following"`
	Verified   bool                 `bson:"verified" json:"verified"`
	CreatedAt  time.Time            `bson:"created_at" json:"createdAt"`
	UpdatedAt  time.Time            `bson:"updated_at" json:"updatedAt"`
}

// UserSummary is the populated shape embedded in follower lists, post and
// comment views.
type UserSummary struct {
	ID         primitive.ObjectID `bson:"_id" json:"id"`
	Username   string             `bson:"username" json:"username"`
	FullName   string             `bson:"full_name" json:"fullName"`
	Avatar     string             `bson:"avatar" json:"avatar"`
	University string             `bson:"university" json:"university"`
	Verified   bool               `bson:"verified" json:"verified"`
}

func (u User) Summary() UserSummary {
	return UserSummary{
		ID:         u.ID,
		Username:   u.Username,
		FullName:   u.FullName,
		Avatar:     u.Avatar,
		University: u.University,
		Verified:   u.Verified,
	}
}

type Attachment struct {
	Filename string `bson:"filename" json:"filename"`
	URL      string `bson:"url" json:"url"`
	Type     string `bson:"type" json:"type"`
}

type SalaryRange struct {
	Min      int64  `bson:"min" json:"min"`
	Max      int64  `bson:"max" json:"max"`
	Currency string `bson:"currency" json:"currency"`
}

type JobDetails struct {
	Company      string      `bson:"company" json:"company"`
	Location     string      `bson:"location" json:"location"`
	Salary       SalaryRange `bson:"salary" json:"salary"`
	Requirements []string    `bson:"requirements" json:"requirements"`
	Deadline     time.Time   `bson:"deadline" json:"deadline"`
	ContactEmail string      `bson:"contact_email" json:"contactEmail"`
}

type NoteDetails struct {
	Subject    string `bson:"subject" json:"subject"`
	CourseCode string `bson:"course_code" json:"courseCode"`
	Semester   string `bson:"semester" json:"semester"`
	Year       int    `bson:"year" json:"year"`
}

// Post carries both sub-documents on every record; only the one matching Type
// is semantically relevant.
type Post struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Author      primitive.ObjectID   `bson:"author" json:"author"`
	Type        PostType             `bson:"type" json:"type"`
	Title       string               `bson:"title" json:"title"`
	Content     string               `bson:"content" json:"content"`
	Category    Category             `bson:"category" json:"category"`
	Tags        []string             `bson:"tags" json:"tags"`
	Attachments []Attachment         `bson:"attachments" json:"attachments"`
	Likes       []primitive.ObjectID `bson:"likes" json:"likes"`
	Comments    []primitive.ObjectID `bson:"comments" json:"comments"`
	Views       int64                `bson:"views" json:"views"`
	IsPublic    bool                 `bson:"is_public" json:"isPublic"`
	Job         JobDetails           `bson:"job" json:"job"`
	Note        NoteDetails          `bson:"note" json:"note"`
	CreatedAt   time.Time            `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updated_at" json:"updatedAt"`
}

type Comment struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Author    primitive.ObjectID   `bson:"author" json:"author"`
	Post      primitive.ObjectID   `bson:"post" json:"post"`
	Parent    *primitive.ObjectID  `bson:"parent,omitempty" json:"parent,omitempty"`
	Content   string               `bson:"content" json:"content"`
	Replies   []primitive.ObjectID `bson:"replies" json:"replies"`
	Likes     []primitive.ObjectID `bson:"likes" json:"likes"`
	Edited    bool                 `bson:"edited" json:"edited"`
	CreatedAt time.Time            `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time            `bson:"updated_at" json:"updatedAt"`
}
