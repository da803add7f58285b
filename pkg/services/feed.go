package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nihalkurra/student-collab-hub/pkg/model"
	"github.com/nihalkurra/student-collab-hub/pkg/storage"
)

const feedExchange = "feed-fanout"

type FeedOp string

const (
	FeedOpAdd    FeedOp = "add"
	FeedOpRemove FeedOp = "remove"
)

type FeedMessage struct {
	ReqID     int64  `json:"req_id"`
	Op        FeedOp `json:"op"`
	PostID    string `json:"post_id"`
	AuthorID  string `json:"author_id"`
	Timestamp int64  `json:"timestamp"`
}

// FeedPublisher hands post events to the fan-out worker.
type FeedPublisher interface {
	Publish(ctx context.Context, msg FeedMessage) error
}

type rabbitFeedPublisher struct {
	logger *slog.Logger
	ch     *amqp.Channel
}

func NewFeedPublisher(logger *slog.Logger, ch *amqp.Channel) (FeedPublisher, error) {
	err := ch.ExchangeDeclare(feedExchange, "topic", false, false, false, false, nil)
	if err != nil {
		return nil, err
	}
	return &rabbitFeedPublisher{logger: logger, ch: ch}, nil
}

func (p *rabbitFeedPublisher) Publish(ctx context.Context, msg FeedMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, feedExchange, feedExchange, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

func feedKey(userID string) string {
	return "feed:" + userID
}

type FeedService interface {
	Read(ctx context.Context, reqID int64, viewer model.User, page int, limit int) ([]PostView, int64, error)
}

type feedService struct {
	logger      *slog.Logger
	redisClient *redis.Client
	posts       *mongo.Collection
	users       *mongo.Collection
}

func NewFeedService(logger *slog.Logger, redisClient *redis.Client, db *mongo.Database) FeedService {
	return &feedService{
		logger:      logger,
		redisClient: redisClient,
		posts:       db.Collection("posts"),
		users:       db.Collection("users"),
	}
}

// Read pages through the viewer's timeline sorted set, newest first, and
// hydrates the ids from mongodb. Posts deleted since fan-out are skipped.
func (f *feedService) Read(ctx context.Context, reqID int64, viewer model.User, page int, limit int) ([]PostView, int64, error) {
	logger := f.logger
	logger.Debug("entering Read", "req_id", reqID, "user_id", viewer.ID.Hex())

	key := feedKey(viewer.ID.Hex())
	total, err := f.redisClient.ZCard(ctx, key).Result()
	if err != nil {
		logger.Error("error reading timeline size from redis", "msg", err.Error())
		return nil, 0, err
	}

	start := int64((page - 1) * limit)
	stop := start + int64(limit) - 1
	result, err := f.redisClient.ZRevRange(ctx, key, start, stop).Result()
	if err != nil {
		logger.Error("error reading timeline from redis", "msg", err.Error())
		return nil, 0, err
	}

	ids := make([]primitive.ObjectID, 0, len(result))
	for _, r := range result {
		id, err := primitive.ObjectIDFromHex(r)
		if err != nil {
			logger.Error("error parsing post id from redis result", "msg", err.Error())
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return []PostView{}, total, nil
	}

	cur, err := f.posts.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		logger.Error("error reading feed posts from mongodb", "msg", err.Error())
		return nil, 0, err
	}
	var docs []model.Post
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}

	// restore timeline order
	byID := make(map[primitive.ObjectID]model.Post, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	ordered := make([]model.Post, 0, len(ids))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			ordered = append(ordered, d)
		}
	}

	views, err := buildPostViews(ctx, f.users, ordered, &viewer)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// FanoutWorker consumes post events and maintains per-follower timeline
// sorted sets in redis.
type FanoutWorker struct {
	logger      *slog.Logger
	redisClient *redis.Client
	users       *mongo.Collection
	posts       *mongo.Collection

	username string
	password string
	address  string
	port     int

	numWorkers      int
	inconsistencies atomic.Int64
}

func NewFanoutWorker(logger *slog.Logger, redisClient *redis.Client, db *mongo.Database, username, password, address string, port int, numWorkers int) *FanoutWorker {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &FanoutWorker{
		logger:      logger,
		redisClient: redisClient,
		users:       db.Collection("users"),
		posts:       db.Collection("posts"),
		username:    username,
		password:    password,
		address:     address,
		port:        port,
		numWorkers:  numWorkers,
	}
}

// Run blocks consuming fan-out messages until ctx is canceled.
func (w *FanoutWorker) Run(ctx context.Context) error {
	logger := w.logger
	logger.Info("initializing feed fan-out workers", "nworkers", w.numWorkers, "rabbitmq_addr", w.address, "rabbitmq_port", w.port)

	var wg sync.WaitGroup
	wg.Add(w.numWorkers)
	for i := 0; i < w.numWorkers; i++ {
		go func() {
			defer wg.Done()
			if err := w.workerThread(ctx); err != nil {
				logger.Error("error in worker thread", "msg", err.Error())
			}
		}()
	}
	wg.Wait()
	return nil
}

func (w *FanoutWorker) workerThread(ctx context.Context) error {
	logger := w.logger

	ch, conn, err := storage.RabbitMQClient(ctx, w.username, w.password, w.address, w.port)
	if err != nil {
		return err
	}
	defer conn.Close()
	defer ch.Close()

	err = ch.ExchangeDeclare(feedExchange, "topic", false, false, false, false, nil)
	if err != nil {
		logger.Error("error declaring exchange for rabbitmq", "msg", err.Error())
		return err
	}
	_, err = ch.QueueDeclare(feedExchange, true, false, false, false, nil)
	if err != nil {
		logger.Error("error declaring queue for rabbitmq", "msg", err.Error())
		return err
	}
	err = ch.QueueBind(feedExchange, feedExchange, feedExchange, false, nil)
	if err != nil {
		logger.Error("error binding queue for rabbitmq", "msg", err.Error())
		return err
	}
	msgs, err := ch.Consume(feedExchange, "", true, false, false, false, nil)
	if err != nil {
		logger.Error("error consuming queue", "msg", err.Error())
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := w.onReceived(ctx, msg.Body); err != nil {
				logger.Warn("error handling fan-out message", "msg", err.Error())
			}
		}
	}
}

func (w *FanoutWorker) onReceived(ctx context.Context, body []byte) error {
	logger := w.logger

	var msg FeedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		logger.Error("error parsing json message", "msg", err.Error())
		return err
	}
	logger.Debug("received fan-out message", "req_id", msg.ReqID, "op", msg.Op, "post_id", msg.PostID)

	authorID, err := primitive.ObjectIDFromHex(msg.AuthorID)
	if err != nil {
		return err
	}
	var author model.User
	if err := w.users.FindOne(ctx, bson.M{"_id": authorID}).Decode(&author); err != nil {
		if err == mongo.ErrNoDocuments {
			logger.Debug("inconsistency: author missing at fan-out time", "total", w.inconsistencies.Add(1))
			return nil
		}
		return err
	}

	switch msg.Op {
	case FeedOpAdd:
		postID, err := primitive.ObjectIDFromHex(msg.PostID)
		if err != nil {
			return err
		}
		n, err := w.posts.CountDocuments(ctx, bson.M{"_id": postID})
		if err != nil {
			return err
		}
		if n == 0 {
			logger.Debug("inconsistency: post missing at fan-out time", "total", w.inconsistencies.Add(1))
			return nil
		}
		_, err = w.redisClient.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, follower := range author.Followers {
				pipe.ZAddNX(ctx, feedKey(follower.Hex()), redis.Z{
					Member: msg.PostID,
					Score:  float64(msg.Timestamp),
				})
			}
			return nil
		})
		return err
	case FeedOpRemove:
		_, err = w.redisClient.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, follower := range author.Followers {
				pipe.ZRem(ctx, feedKey(follower.Hex()), msg.PostID)
			}
			return nil
		})
		return err
	}
	return nil
}
