package services

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nihalkurra/student-collab-hub/pkg/model"
)

const exploreCap = 20

type PostService interface {
	List(ctx context.Context, reqID int64, q PostQuery, viewer *model.User) ([]PostView, int64, error)
	Explore(ctx context.Context, reqID int64, viewer *model.User) ([]PostView, error)
	Liked(ctx context.Context, reqID int64, viewer model.User, page int, limit int) ([]PostView, int64, error)
	Get(ctx context.Context, reqID int64, id primitive.ObjectID, viewer *model.User) (PostView, error)
	Create(ctx context.Context, reqID int64, author model.User, in PostInput) (PostView, error)
	Update(ctx context.Context, reqID int64, author model.User, id primitive.ObjectID, upd PostUpdate) (PostView, error)
	Delete(ctx context.Context, reqID int64, author model.User, id primitive.ObjectID) error
	Like(ctx context.Context, reqID int64, viewer model.User, id primitive.ObjectID) error
	Unlike(ctx context.Context, reqID int64, viewer model.User, id primitive.ObjectID) error
	ByUser(ctx context.Context, reqID int64, userID primitive.ObjectID, viewer *model.User, page int, limit int) ([]PostView, int64, error)
}

type PostQuery struct {
	Page     int
	Limit    int
	Type     string
	Category string
	Author   string
	Search   string
}

type PostInput struct {
	Type        model.PostType
	Title       string
	Content     string
	Category    model.Category
	Tags        []string
	Attachments []model.Attachment
	IsPublic    bool
	Job         model.JobDetails
	Note        model.NoteDetails
}

// PostUpdate fields left nil are not touched.
type PostUpdate struct {
	Title    *string
	Content  *string
	Category *model.Category
	Tags     []string
	IsPublic *bool
	Job      *model.JobDetails
	Note     *model.NoteDetails
}

// PostView is a post with its author populated and viewer-dependent flags
// attached. The named fields shadow the embedded document's on marshaling.
type PostView struct {
	model.Post
	Author       model.UserSummary `json:"author"`
	IsLiked      bool              `json:"isLiked"`
	LikeCount    int               `json:"likeCount"`
	CommentCount int               `json:"commentCount"`
}

type postService struct {
	logger   *slog.Logger
	client   *mongo.Client
	posts    *mongo.Collection
	comments *mongo.Collection
	users    *mongo.Collection
	fanout   FeedPublisher
}

func NewPostService(logger *slog.Logger, client *mongo.Client, db *mongo.Database, fanout FeedPublisher) PostService {
	return &postService{
		logger:   logger,
		client:   client,
		posts:    db.Collection("posts"),
		comments: db.Collection("comments"),
		users:    db.Collection("users"),
		fanout:   fanout,
	}
}

// visibleFilter restricts a query to public posts plus the viewer's own.
func visibleFilter(viewer *model.User) bson.M {
	if viewer == nil {
		return bson.M{"is_public": true}
	}
	return bson.M{"$or": []bson.M{
		{"is_public": true},
		{"author": viewer.ID},
	}}
}

func (s *postService) List(ctx context.Context, reqID int64, q PostQuery, viewer *model.User) ([]PostView, int64, error) {
	logger := s.logger
	logger.Debug("entering List", "req_id", reqID, "page", q.Page, "limit", q.Limit)

	and := []bson.M{visibleFilter(viewer)}
	if q.Type != "" {
		and = append(and, bson.M{"type": q.Type})
	}
	if q.Category != "" {
		and = append(and, bson.M{"category": q.Category})
	}
	if q.Author != "" {
		authorID, err := primitive.ObjectIDFromHex(q.Author)
		if err != nil {
			return nil, 0, validation([]string{"author must be a valid id"})
		}
		and = append(and, bson.M{"author": authorID})
	}
	if q.Search != "" {
		re := bson.M{"$regex": regexQuote(q.Search), "$options": "i"}
		and = append(and, bson.M{"$or": []bson.M{
			{"title": re},
			{"content": re},
			{"tags": re},
		}})
	}
	filter := bson.M{"$and": and}

	total, err := s.posts.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSkip(int64((q.Page - 1) * q.Limit)).
		SetLimit(int64(q.Limit)).
		SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.posts.Find(ctx, filter, opts)
	if err != nil {
		logger.Error("error reading posts from mongodb", "msg", err.Error())
		return nil, 0, err
	}
	var docs []model.Post
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	views, err := s.buildViews(ctx, docs, viewer)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

func (s *postService) Explore(ctx context.Context, reqID int64, viewer *model.User) ([]PostView, error) {
	logger := s.logger
	logger.Debug("entering Explore", "req_id", reqID)

	opts := options.Find().
		SetLimit(exploreCap).
		SetSort(bson.D{{Key: "views", Value: -1}, {Key: "created_at", Value: -1}})
	cur, err := s.posts.Find(ctx, visibleFilter(viewer), opts)
	if err != nil {
		return nil, err
	}
	var docs []model.Post
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return s.buildViews(ctx, docs, viewer)
}

func (s *postService) Liked(ctx context.Context, reqID int64, viewer model.User, page int, limit int) ([]PostView, int64, error) {
	logger := s.logger
	logger.Debug("entering Liked", "req_id", reqID, "user_id", viewer.ID.Hex())

	filter := bson.M{"$and": []bson.M{
		{"likes": viewer.ID},
		visibleFilter(&viewer),
	}}
	total, err := s.posts.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.posts.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	var docs []model.Post
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	views, err := s.buildViews(ctx, docs, &viewer)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// Get is not read-only: every successful fetch increments the view counter by
// exactly one before the document is returned.
func (s *postService) Get(ctx context.Context, reqID int64, id primitive.ObjectID, viewer *model.User) (PostView, error) {
	logger := s.logger
	logger.Debug("entering Get", "req_id", reqID, "post_id", id.Hex())

	start := time.Now().UnixMilli()

	filter := bson.M{"$and": []bson.M{{"_id": id}, visibleFilter(viewer)}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var post model.Post
	err := s.posts.FindOneAndUpdate(ctx, filter, bson.M{"$inc": bson.M{"views": 1}}, opts).Decode(&post)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return PostView{}, ErrNotFound
		}
		logger.Error("error reading post from mongodb", "msg", err.Error())
		return PostView{}, err
	}

	trace.SpanFromContext(ctx).AddEvent("reading post in mongodb",
		trace.WithAttributes(
			attribute.Int64("poststorage_start_ms", start),
			attribute.Int64("poststorage_end_ms", time.Now().UnixMilli()),
		))

	views, err := s.buildViews(ctx, []model.Post{post}, viewer)
	if err != nil {
		return PostView{}, err
	}
	return views[0], nil
}

func (s *postService) Create(ctx context.Context, reqID int64, author model.User, in PostInput) (PostView, error) {
	logger := s.logger
	logger.Debug("entering Create", "req_id", reqID, "user_id", author.ID.Hex())

	now := time.Now().UTC()
	post := model.Post{
		Author:      author.ID,
		Type:        in.Type,
		Title:       in.Title,
		Content:     in.Content,
		Category:    in.Category,
		Tags:        in.Tags,
		Attachments: in.Attachments,
		Likes:       []primitive.ObjectID{},
		Comments:    []primitive.ObjectID{},
		IsPublic:    in.IsPublic,
		Job:         in.Job,
		Note:        in.Note,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}
	if post.Attachments == nil {
		post.Attachments = []model.Attachment{}
	}
	if errs := model.ValidatePost(post); len(errs) > 0 {
		return PostView{}, validation(errs)
	}

	res, err := s.posts.InsertOne(ctx, post)
	if err != nil {
		logger.Error("error writing post", "msg", err.Error())
		return PostView{}, err
	}
	post.ID = res.InsertedID.(primitive.ObjectID)
	logger.Debug("inserted post", "objectid", res.InsertedID)

	// feed fan-out is best effort; the post is already durable
	if post.IsPublic && s.fanout != nil {
		msg := FeedMessage{
			ReqID:     reqID,
			Op:        FeedOpAdd,
			PostID:    post.ID.Hex(),
			AuthorID:  author.ID.Hex(),
			Timestamp: now.UnixMilli(),
		}
		if err := s.fanout.Publish(ctx, msg); err != nil {
			logger.Error("error publishing feed fan-out message", "msg", err.Error())
		}
	}

	return PostView{
		Post:   post,
		Author: author.Summary(),
	}, nil
}

func (s *postService) Update(ctx context.Context, reqID int64, author model.User, id primitive.ObjectID, upd PostUpdate) (PostView, error) {
	logger := s.logger
	logger.Debug("entering Update", "req_id", reqID, "post_id", id.Hex())

	var post model.Post
	if err := s.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&post); err != nil {
		if err == mongo.ErrNoDocuments {
			return PostView{}, ErrNotFound
		}
		return PostView{}, err
	}
	if post.Author != author.ID {
		return PostView{}, ErrForbidden
	}

	if upd.Title != nil {
		post.Title = *upd.Title
	}
	if upd.Content != nil {
		post.Content = *upd.Content
	}
	if upd.Category != nil {
		post.Category = *upd.Category
	}
	if upd.Tags != nil {
		post.Tags = upd.Tags
	}
	if upd.IsPublic != nil {
		post.IsPublic = *upd.IsPublic
	}
	if upd.Job != nil {
		post.Job = *upd.Job
	}
	if upd.Note != nil {
		post.Note = *upd.Note
	}
	if errs := model.ValidatePost(post); len(errs) > 0 {
		return PostView{}, validation(errs)
	}
	post.UpdatedAt = time.Now().UTC()

	set := bson.M{
		"title":      post.Title,
		"content":    post.Content,
		"category":   post.Category,
		"tags":       post.Tags,
		"is_public":  post.IsPublic,
		"job":        post.Job,
		"note":       post.Note,
		"updated_at": post.UpdatedAt,
	}
	if _, err := s.posts.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set}); err != nil {
		logger.Error("error updating post in mongodb", "msg", err.Error())
		return PostView{}, err
	}

	return PostView{
		Post:         post,
		Author:       author.Summary(),
		IsLiked:      containsID(post.Likes, author.ID),
		LikeCount:    len(post.Likes),
		CommentCount: len(post.Comments),
	}, nil
}

// Delete removes the post and all of its comments in one transaction, then
// asks the fan-out worker to clear it from follower timelines.
func (s *postService) Delete(ctx context.Context, reqID int64, author model.User, id primitive.ObjectID) error {
	logger := s.logger
	logger.Debug("entering Delete", "req_id", reqID, "post_id", id.Hex())

	var post model.Post
	if err := s.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&post); err != nil {
		if err == mongo.ErrNoDocuments {
			return ErrNotFound
		}
		return err
	}
	if post.Author != author.ID {
		return ErrForbidden
	}

	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := s.comments.DeleteMany(sc, bson.M{"post": id}); err != nil {
			return nil, err
		}
		if _, err := s.posts.DeleteOne(sc, bson.M{"_id": id}); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		logger.Error("error deleting post in mongodb", "msg", err.Error())
		return err
	}

	if s.fanout != nil {
		msg := FeedMessage{
			ReqID:    reqID,
			Op:       FeedOpRemove,
			PostID:   id.Hex(),
			AuthorID: author.ID.Hex(),
		}
		if err := s.fanout.Publish(ctx, msg); err != nil {
			logger.Error("error publishing feed removal message", "msg", err.Error())
		}
	}
	return nil
}

func (s *postService) Like(ctx context.Context, reqID int64, viewer model.User, id primitive.ObjectID) error {
	return s.toggleLike(ctx, reqID, viewer, id, "$addToSet")
}

func (s *postService) Unlike(ctx context.Context, reqID int64, viewer model.User, id primitive.ObjectID) error {
	return s.toggleLike(ctx, reqID, viewer, id, "$pull")
}

func (s *postService) toggleLike(ctx context.Context, reqID int64, viewer model.User, id primitive.ObjectID, op string) error {
	logger := s.logger
	logger.Debug("entering toggleLike", "req_id", reqID, "post_id", id.Hex(), "op", op)

	res, err := s.posts.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{op: bson.M{"likes": viewer.ID}},
	)
	if err != nil {
		logger.Error("error toggling post like in mongodb", "msg", err.Error())
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postService) ByUser(ctx context.Context, reqID int64, userID primitive.ObjectID, viewer *model.User, page int, limit int) ([]PostView, int64, error) {
	logger := s.logger
	logger.Debug("entering ByUser", "req_id", reqID, "user_id", userID.Hex())

	n, err := s.users.CountDocuments(ctx, bson.M{"_id": userID})
	if err != nil {
		return nil, 0, err
	}
	if n == 0 {
		return nil, 0, ErrNotFound
	}

	filter := bson.M{"$and": []bson.M{
		{"author": userID},
		visibleFilter(viewer),
	}}
	total, err := s.posts.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.posts.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	var docs []model.Post
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	views, err := s.buildViews(ctx, docs, viewer)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// buildViews populates authors and viewer flags for a batch of posts.
func (s *postService) buildViews(ctx context.Context, docs []model.Post, viewer *model.User) ([]PostView, error) {
	return buildPostViews(ctx, s.users, docs, viewer)
}

func buildPostViews(ctx context.Context, users *mongo.Collection, docs []model.Post, viewer *model.User) ([]PostView, error) {
	authorIDs := make([]primitive.ObjectID, 0, len(docs))
	for _, d := range docs {
		authorIDs = append(authorIDs, d.Author)
	}
	summaries, err := loadUserSummaries(ctx, users, authorIDs)
	if err != nil {
		return nil, err
	}
	out := make([]PostView, 0, len(docs))
	for _, d := range docs {
		v := PostView{
			Post:         d,
			Author:       summaries[d.Author],
			LikeCount:    len(d.Likes),
			CommentCount: len(d.Comments),
		}
		if viewer != nil {
			v.IsLiked = containsID(d.Likes, viewer.ID)
		}
		out = append(out, v)
	}
	return out, nil
}
