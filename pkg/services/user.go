package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nihalkurra/student-collab-hub/pkg/model"
)

type UserService interface {
	List(ctx context.Context, reqID int64, q UserQuery) ([]model.UserSummary, int64, error)
	Explore(ctx context.Context, reqID int64, viewer model.User, page int, limit int) ([]ExploreUser, int64, error)
	Get(ctx context.Context, reqID int64, id primitive.ObjectID, viewer *model.User) (Profile, error)
	Update(ctx context.Context, reqID int64, self model.User, upd ProfileUpdate) (model.User, error)
	Follow(ctx context.Context, reqID int64, viewer model.User, targetID primitive.ObjectID) error
	Unfollow(ctx context.Context, reqID int64, viewer model.User, targetID primitive.ObjectID) error
	Followers(ctx context.Context, reqID int64, id primitive.ObjectID, page int, limit int) ([]model.UserSummary, int64, error)
	Following(ctx context.Context, reqID int64, id primitive.ObjectID, page int, limit int) ([]model.UserSummary, int64, error)
}

type UserQuery struct {
	Page       int
	Limit      int
	Username   string
	FullName   string
	University string
	Major      string
}

// Profile is the populated single-user view.
type Profile struct {
	User        model.User          `json:"user"`
	Followers   []model.UserSummary `json:"followers"`
	Following   []model.UserSummary `json:"following"`
	IsFollowing bool                `json:"isFollowing"`
}

type ExploreUser struct {
	model.UserSummary
	IsFollowing bool `json:"isFollowing"`
}

// ProfileUpdate fields left empty are not touched.
type ProfileUpdate struct {
	Username   string
	Email      string
	FullName   string
	Bio        string
	University string
	Major      string
	Year       int
	Avatar     string
}

type userService struct {
	logger *slog.Logger
	client *mongo.Client
	users  *mongo.Collection
}

func NewUserService(logger *slog.Logger, client *mongo.Client, db *mongo.Database) UserService {
	return &userService{
		logger: logger,
		client: client,
		users:  db.Collection("users"),
	}
}

func (s *userService) List(ctx context.Context, reqID int64, q UserQuery) ([]model.UserSummary, int64, error) {
	logger := s.logger
	logger.Debug("entering List", "req_id", reqID, "page", q.Page, "limit", q.Limit)

	filter := bson.M{}
	addRegex := func(field, value string) {
		if value != "" {
			filter[field] = bson.M{"$regex": regexQuote(value), "$options": "i"}
		}
	}
	addRegex("username", q.Username)
	addRegex("full_name", q.FullName)
	addRegex("university", q.University)
	addRegex("major", q.Major)

	total, err := s.users.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSkip(int64((q.Page - 1) * q.Limit)).
		SetLimit(int64(q.Limit)).
		SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.users.Find(ctx, filter, opts)
	if err != nil {
		logger.Error("error reading users from mongodb", "msg", err.Error())
		return nil, 0, err
	}
	var docs []model.UserSummary
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func (s *userService) Explore(ctx context.Context, reqID int64, viewer model.User, page int, limit int) ([]ExploreUser, int64, error) {
	logger := s.logger
	logger.Debug("entering Explore", "req_id", reqID, "user_id", viewer.ID.Hex())

	filter := bson.M{"_id": bson.M{"$ne": viewer.ID}}
	total, err := s.users.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	var docs []model.UserSummary
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	out := make([]ExploreUser, 0, len(docs))
	for _, d := range docs {
		out = append(out, ExploreUser{
			UserSummary: d,
			IsFollowing: containsID(viewer.Following, d.ID),
		})
	}
	return out, total, nil
}

func (s *userService) Get(ctx context.Context, reqID int64, id primitive.ObjectID, viewer *model.User) (Profile, error) {
	logger := s.logger
	logger.Debug("entering Get", "req_id", reqID, "user_id", id.Hex())

	var user model.User
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return Profile{}, ErrNotFound
		}
		logger.Error("error reading user from mongodb", "msg", err.Error())
		return Profile{}, err
	}

	refs := append(append([]primitive.ObjectID{}, user.Followers...), user.Following...)
	summaries, err := loadUserSummaries(ctx, s.users, refs)
	if err != nil {
		return Profile{}, err
	}
	p := Profile{
		User:      user,
		Followers: summariesFor(user.Followers, summaries),
		Following: summariesFor(user.Following, summaries),
	}
	if viewer != nil {
		p.IsFollowing = containsID(user.Followers, viewer.ID)
	}
	return p, nil
}

func (s *userService) Update(ctx context.Context, reqID int64, self model.User, upd ProfileUpdate) (model.User, error) {
	logger := s.logger
	logger.Debug("entering Update", "req_id", reqID, "user_id", self.ID.Hex())

	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Username != "" && upd.Username != self.Username {
		n, err := s.users.CountDocuments(ctx, bson.M{"username": upd.Username, "_id": bson.M{"$ne": self.ID}})
		if err != nil {
			return model.User{}, err
		}
		if n > 0 {
			return model.User{}, ErrUsernameTaken
		}
		set["username"] = upd.Username
	}
	if upd.Email != "" && upd.Email != self.Email {
		email := strings.ToLower(upd.Email)
		n, err := s.users.CountDocuments(ctx, bson.M{"email": email, "_id": bson.M{"$ne": self.ID}})
		if err != nil {
			return model.User{}, err
		}
		if n > 0 {
			return model.User{}, ErrEmailTaken
		}
		set["email"] = email
	}
	if upd.FullName != "" {
		set["full_name"] = upd.FullName
	}
	if upd.Bio != "" {
		set["bio"] = upd.Bio
	}
	if upd.University != "" {
		set["university"] = upd.University
	}
	if upd.Major != "" {
		set["major"] = upd.Major
	}
	if upd.Year != 0 {
		set["year"] = upd.Year
	}
	if upd.Avatar != "" {
		set["avatar"] = upd.Avatar
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user model.User
	err := s.users.FindOneAndUpdate(ctx, bson.M{"_id": self.ID}, bson.M{"$set": set}, opts).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return model.User{}, ErrNotFound
		}
		logger.Error("error updating user in mongodb", "msg", err.Error())
		return model.User{}, err
	}
	return user, nil
}

// Follow updates both sides of the relationship in a single transaction so a
// failure never leaves the mirror sets half applied.
func (s *userService) Follow(ctx context.Context, reqID int64, viewer model.User, targetID primitive.ObjectID) error {
	logger := s.logger
	logger.Debug("entering Follow", "req_id", reqID, "user_id", viewer.ID.Hex(), "target_id", targetID.Hex())

	if viewer.ID == targetID {
		return ErrSelfFollow
	}

	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var target model.User
		if err := s.users.FindOne(sc, bson.M{"_id": targetID}).Decode(&target); err != nil {
			if err == mongo.ErrNoDocuments {
				return nil, ErrNotFound
			}
			return nil, err
		}
		if _, err := s.users.UpdateOne(sc,
			bson.M{"_id": viewer.ID},
			bson.M{"$addToSet": bson.M{"following": targetID}},
		); err != nil {
			return nil, err
		}
		if _, err := s.users.UpdateOne(sc,
			bson.M{"_id": targetID},
			bson.M{"$addToSet": bson.M{"followers": viewer.ID}},
		); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		if err != ErrNotFound {
			logger.Error("error updating follow edges in mongodb", "msg", err.Error())
		}
		return err
	}
	return nil
}

func (s *userService) Unfollow(ctx context.Context, reqID int64, viewer model.User, targetID primitive.ObjectID) error {
	logger := s.logger
	logger.Debug("entering Unfollow", "req_id", reqID, "user_id", viewer.ID.Hex(), "target_id", targetID.Hex())

	if viewer.ID == targetID {
		return ErrSelfFollow
	}
	if !containsID(viewer.Following, targetID) {
		return ErrNotFollowing
	}

	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		n, err := s.users.CountDocuments(sc, bson.M{"_id": targetID})
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrNotFound
		}
		if _, err := s.users.UpdateOne(sc,
			bson.M{"_id": viewer.ID},
			bson.M{"$pull": bson.M{"following": targetID}},
		); err != nil {
			return nil, err
		}
		if _, err := s.users.UpdateOne(sc,
			bson.M{"_id": targetID},
			bson.M{"$pull": bson.M{"followers": viewer.ID}},
		); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		if err != ErrNotFound {
			logger.Error("error removing follow edges in mongodb", "msg", err.Error())
		}
		return err
	}
	return nil
}

func (s *userService) Followers(ctx context.Context, reqID int64, id primitive.ObjectID, page int, limit int) ([]model.UserSummary, int64, error) {
	return s.relationPage(ctx, reqID, id, "followers", page, limit)
}

func (s *userService) Following(ctx context.Context, reqID int64, id primitive.ObjectID, page int, limit int) ([]model.UserSummary, int64, error) {
	return s.relationPage(ctx, reqID, id, "following", page, limit)
}

func (s *userService) relationPage(ctx context.Context, reqID int64, id primitive.ObjectID, field string, page int, limit int) ([]model.UserSummary, int64, error) {
	logger := s.logger
	logger.Debug("entering relationPage", "req_id", reqID, "user_id", id.Hex(), "field", field)

	var user model.User
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, 0, ErrNotFound
		}
		return nil, 0, err
	}
	ids := user.Followers
	if field == "following" {
		ids = user.Following
	}
	total := int64(len(ids))

	start := (page - 1) * limit
	if start >= len(ids) {
		return []model.UserSummary{}, total, nil
	}
	end := start + limit
	if end > len(ids) {
		end = len(ids)
	}
	pageIDs := ids[start:end]

	summaries, err := loadUserSummaries(ctx, s.users, pageIDs)
	if err != nil {
		return nil, 0, err
	}
	return summariesFor(pageIDs, summaries), total, nil
}

// regexQuote escapes regex metacharacters so substring filters stay literal.
func regexQuote(s string) string {
	special := `\.+*?()|[]{}^$`
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
