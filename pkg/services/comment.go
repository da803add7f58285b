package services

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nihalkurra/student-collab-hub/pkg/model"
)

type CommentService interface {
	ListByPost(ctx context.Context, reqID int64, postID primitive.ObjectID, viewer *model.User, page int, limit int) ([]CommentView, int64, error)
	Create(ctx context.Context, reqID int64, author model.User, in CommentInput) (CommentView, error)
	Update(ctx context.Context, reqID int64, author model.User, id primitive.ObjectID, content string) (CommentView, error)
	Delete(ctx context.Context, reqID int64, author model.User, id primitive.ObjectID) error
	Like(ctx context.Context, reqID int64, viewer model.User, id primitive.ObjectID) error
	Unlike(ctx context.Context, reqID int64, viewer model.User, id primitive.ObjectID) error
	Replies(ctx context.Context, reqID int64, parentID primitive.ObjectID, viewer *model.User, page int, limit int) ([]CommentView, int64, error)
}

type CommentInput struct {
	Post    primitive.ObjectID
	Parent  *primitive.ObjectID
	Content string
}

type CommentView struct {
	model.Comment
	Author    model.UserSummary `json:"author"`
	Replies   []CommentView     `json:"replies"`
	IsLiked   bool              `json:"isLiked"`
	LikeCount int               `json:"likeCount"`
}

type commentService struct {
	logger   *slog.Logger
	client   *mongo.Client
	comments *mongo.Collection
	posts    *mongo.Collection
	users    *mongo.Collection
}

func NewCommentService(logger *slog.Logger, client *mongo.Client, db *mongo.Database) CommentService {
	return &commentService{
		logger:   logger,
		client:   client,
		comments: db.Collection("comments"),
		posts:    db.Collection("posts"),
		users:    db.Collection("users"),
	}
}

// ListByPost returns top-level comments newest first, each with one level of
// populated replies.
func (s *commentService) ListByPost(ctx context.Context, reqID int64, postID primitive.ObjectID, viewer *model.User, page int, limit int) ([]CommentView, int64, error) {
	logger := s.logger
	logger.Debug("entering ListByPost", "req_id", reqID, "post_id", postID.Hex())

	n, err := s.posts.CountDocuments(ctx, bson.M{"_id": postID})
	if err != nil {
		return nil, 0, err
	}
	if n == 0 {
		return nil, 0, ErrNotFound
	}

	filter := bson.M{"post": postID, "parent": nil}
	total, err := s.comments.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.comments.Find(ctx, filter, opts)
	if err != nil {
		logger.Error("error reading comments from mongodb", "msg", err.Error())
		return nil, 0, err
	}
	var docs []model.Comment
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}

	parentIDs := make([]primitive.ObjectID, 0, len(docs))
	for _, d := range docs {
		parentIDs = append(parentIDs, d.ID)
	}
	var replies []model.Comment
	if len(parentIDs) > 0 {
		rcur, err := s.comments.Find(ctx,
			bson.M{"parent": bson.M{"$in": parentIDs}},
			options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
		)
		if err != nil {
			return nil, 0, err
		}
		if err := rcur.All(ctx, &replies); err != nil {
			return nil, 0, err
		}
	}

	views, err := s.buildViews(ctx, docs, replies, viewer)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

func (s *commentService) Create(ctx context.Context, reqID int64, author model.User, in CommentInput) (CommentView, error) {
	logger := s.logger
	logger.Debug("entering Create", "req_id", reqID, "post_id", in.Post.Hex())

	if errs := model.ValidateComment(in.Content); len(errs) > 0 {
		return CommentView{}, validation(errs)
	}

	n, err := s.posts.CountDocuments(ctx, bson.M{"_id": in.Post})
	if err != nil {
		return CommentView{}, err
	}
	if n == 0 {
		return CommentView{}, ErrNotFound
	}

	if in.Parent != nil {
		var parent model.Comment
		if err := s.comments.FindOne(ctx, bson.M{"_id": *in.Parent}).Decode(&parent); err != nil {
			if err == mongo.ErrNoDocuments {
				return CommentView{}, ErrNotFound
			}
			return CommentView{}, err
		}
		if parent.Post != in.Post {
			return CommentView{}, validation([]string{"parent comment belongs to a different post"})
		}
		if parent.Parent != nil {
			return CommentView{}, validation([]string{"replies can only target a top-level comment"})
		}
	}

	now := time.Now().UTC()
	comment := model.Comment{
		Author:    author.ID,
		Post:      in.Post,
		Parent:    in.Parent,
		Content:   in.Content,
		Replies:   []primitive.ObjectID{},
		Likes:     []primitive.ObjectID{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	session, err := s.client.StartSession()
	if err != nil {
		return CommentView{}, err
	}
	defer session.EndSession(ctx)

	// insert and back-reference update happen together so a reply is never
	// missing from its parent's list
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		res, err := s.comments.InsertOne(sc, comment)
		if err != nil {
			return nil, err
		}
		comment.ID = res.InsertedID.(primitive.ObjectID)
		if in.Parent != nil {
			if _, err := s.comments.UpdateOne(sc,
				bson.M{"_id": *in.Parent},
				bson.M{"$addToSet": bson.M{"replies": comment.ID}},
			); err != nil {
				return nil, err
			}
		}
		if _, err := s.posts.UpdateOne(sc,
			bson.M{"_id": in.Post},
			bson.M{"$addToSet": bson.M{"comments": comment.ID}},
		); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		logger.Error("error writing comment in mongodb", "msg", err.Error())
		return CommentView{}, err
	}

	return CommentView{
		Comment: comment,
		Author:  author.Summary(),
		Replies: []CommentView{},
	}, nil
}

func (s *commentService) Update(ctx context.Context, reqID int64, author model.User, id primitive.ObjectID, content string) (CommentView, error) {
	logger := s.logger
	logger.Debug("entering Update", "req_id", reqID, "comment_id", id.Hex())

	if errs := model.ValidateComment(content); len(errs) > 0 {
		return CommentView{}, validation(errs)
	}

	var comment model.Comment
	if err := s.comments.FindOne(ctx, bson.M{"_id": id}).Decode(&comment); err != nil {
		if err == mongo.ErrNoDocuments {
			return CommentView{}, ErrNotFound
		}
		return CommentView{}, err
	}
	if comment.Author != author.ID {
		return CommentView{}, ErrForbidden
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": bson.M{
		"content":    content,
		"edited":     true,
		"updated_at": time.Now().UTC(),
	}}
	if err := s.comments.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&comment); err != nil {
		logger.Error("error updating comment in mongodb", "msg", err.Error())
		return CommentView{}, err
	}
	return CommentView{
		Comment:   comment,
		Author:    author.Summary(),
		Replies:   []CommentView{},
		IsLiked:   containsID(comment.Likes, author.ID),
		LikeCount: len(comment.Likes),
	}, nil
}

// Delete cascades to all replies and detaches the comment from its post's
// comment list and, for a reply, from its parent's reply list. All steps run
// in one transaction.
func (s *commentService) Delete(ctx context.Context, reqID int64, author model.User, id primitive.ObjectID) error {
	logger := s.logger
	logger.Debug("entering Delete", "req_id", reqID, "comment_id", id.Hex())

	var comment model.Comment
	if err := s.comments.FindOne(ctx, bson.M{"_id": id}).Decode(&comment); err != nil {
		if err == mongo.ErrNoDocuments {
			return ErrNotFound
		}
		return err
	}
	if comment.Author != author.ID {
		return ErrForbidden
	}

	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		rcur, err := s.comments.Find(sc, bson.M{"parent": id}, options.Find().SetProjection(bson.M{"_id": 1}))
		if err != nil {
			return nil, err
		}
		var replyDocs []model.Comment
		if err := rcur.All(sc, &replyDocs); err != nil {
			return nil, err
		}
		removed := []primitive.ObjectID{id}
		for _, r := range replyDocs {
			removed = append(removed, r.ID)
		}

		if _, err := s.comments.DeleteMany(sc, bson.M{"_id": bson.M{"$in": removed}}); err != nil {
			return nil, err
		}
		if _, err := s.posts.UpdateOne(sc,
			bson.M{"_id": comment.Post},
			bson.M{"$pull": bson.M{"comments": bson.M{"$in": removed}}},
		); err != nil {
			return nil, err
		}
		if comment.Parent != nil {
			if _, err := s.comments.UpdateOne(sc,
				bson.M{"_id": *comment.Parent},
				bson.M{"$pull": bson.M{"replies": id}},
			); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		logger.Error("error deleting comment in mongodb", "msg", err.Error())
		return err
	}
	return nil
}

func (s *commentService) Like(ctx context.Context, reqID int64, viewer model.User, id primitive.ObjectID) error {
	return s.toggleLike(ctx, reqID, viewer, id, "$addToSet")
}

func (s *commentService) Unlike(ctx context.Context, reqID int64, viewer model.User, id primitive.ObjectID) error {
	return s.toggleLike(ctx, reqID, viewer, id, "$pull")
}

func (s *commentService) toggleLike(ctx context.Context, reqID int64, viewer model.User, id primitive.ObjectID, op string) error {
	logger := s.logger
	logger.Debug("entering toggleLike", "req_id", reqID, "comment_id", id.Hex(), "op", op)

	res, err := s.comments.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{op: bson.M{"likes": viewer.ID}},
	)
	if err != nil {
		logger.Error("error toggling comment like in mongodb", "msg", err.Error())
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Replies lists a comment's replies oldest first.
func (s *commentService) Replies(ctx context.Context, reqID int64, parentID primitive.ObjectID, viewer *model.User, page int, limit int) ([]CommentView, int64, error) {
	logger := s.logger
	logger.Debug("entering Replies", "req_id", reqID, "comment_id", parentID.Hex())

	n, err := s.comments.CountDocuments(ctx, bson.M{"_id": parentID})
	if err != nil {
		return nil, 0, err
	}
	if n == 0 {
		return nil, 0, ErrNotFound
	}

	filter := bson.M{"parent": parentID}
	total, err := s.comments.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := s.comments.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	var docs []model.Comment
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	views, err := s.buildViews(ctx, docs, nil, viewer)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

func (s *commentService) buildViews(ctx context.Context, docs []model.Comment, replies []model.Comment, viewer *model.User) ([]CommentView, error) {
	authorIDs := make([]primitive.ObjectID, 0, len(docs)+len(replies))
	for _, d := range docs {
		authorIDs = append(authorIDs, d.Author)
	}
	for _, r := range replies {
		authorIDs = append(authorIDs, r.Author)
	}
	summaries, err := loadUserSummaries(ctx, s.users, authorIDs)
	if err != nil {
		return nil, err
	}

	byParent := map[primitive.ObjectID][]CommentView{}
	for _, r := range replies {
		v := CommentView{
			Comment:   r,
			Author:    summaries[r.Author],
			Replies:   []CommentView{},
			LikeCount: len(r.Likes),
		}
		if viewer != nil {
			v.IsLiked = containsID(r.Likes, viewer.ID)
		}
		byParent[*r.Parent] = append(byParent[*r.Parent], v)
	}

	out := make([]CommentView, 0, len(docs))
	for _, d := range docs {
		v := CommentView{
			Comment:   d,
			Author:    summaries[d.Author],
			Replies:   byParent[d.ID],
			LikeCount: len(d.Likes),
		}
		if v.Replies == nil {
			v.Replies = []CommentView{}
		}
		if viewer != nil {
			v.IsLiked = containsID(d.Likes, viewer.ID)
		}
		out = append(out, v)
	}
	return out, nil
}
