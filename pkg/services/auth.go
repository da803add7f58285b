package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/dgrijalva/jwt-go"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/nihalkurra/student-collab-hub/pkg/model"
)

type AuthService interface {
	Register(ctx context.Context, reqID int64, req RegisterRequest) (model.User, string, error)
	Login(ctx context.Context, reqID int64, username string, password string) (model.User, string, error)
	VerifyToken(ctx context.Context, token string) (model.User, error)
}

type RegisterRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	FullName   string `json:"fullName"`
	University string `json:"university"`
	Major      string `json:"major"`
	Year       int    `json:"year"`
}

type Claims struct {
	Username  string `json:"username"`
	UserID    string `json:"user_id"`
	Timestamp int64  `json:"timestamp"`
	jwt.StandardClaims
}

// loginInfo is the credentials blob cached in memcached under
// "login:<username>".
type loginInfo struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

type authService struct {
	logger *slog.Logger
	users  *mongo.Collection
	cache  *memcache.Client
	secret string
	ttl    time.Duration
}

func NewAuthService(logger *slog.Logger, db *mongo.Database, cache *memcache.Client, secret string, ttl time.Duration) AuthService {
	return &authService{
		logger: logger,
		users:  db.Collection("users"),
		cache:  cache,
		secret: secret,
		ttl:    ttl,
	}
}

func (a *authService) Register(ctx context.Context, reqID int64, req RegisterRequest) (model.User, string, error) {
	logger := a.logger
	logger.Debug("entering Register", "req_id", reqID, "username", req.Username)

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if errs := model.ValidateRegistration(req.Username, req.Email, req.Password, req.FullName); len(errs) > 0 {
		return model.User{}, "", validation(errs)
	}

	n, err := a.users.CountDocuments(ctx, bson.M{"username": req.Username})
	if err != nil {
		return model.User{}, "", err
	}
	if n > 0 {
		return model.User{}, "", ErrUsernameTaken
	}
	n, err = a.users.CountDocuments(ctx, bson.M{"email": req.Email})
	if err != nil {
		return model.User{}, "", err
	}
	if n > 0 {
		return model.User{}, "", ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, "", err
	}

	now := time.Now().UTC()
	user := model.User{
		Username:   req.Username,
		Email:      req.Email,
		Password:   string(hash),
		FullName:   req.FullName,
		University: req.University,
		Major:      req.Major,
		Year:       req.Year,
		Followers:  []primitive.ObjectID{},
		Following:  []primitive.ObjectID{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	res, err := a.users.InsertOne(ctx, user)
	if err != nil {
		// lost the race against the unique index
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), "email") {
				return model.User{}, "", ErrEmailTaken
			}
			return model.User{}, "", ErrUsernameTaken
		}
		logger.Error("error inserting user", "msg", err.Error())
		return model.User{}, "", err
	}
	user.ID = res.InsertedID.(primitive.ObjectID)

	token, err := a.issueToken(user)
	if err != nil {
		return model.User{}, "", err
	}
	logger.Info("registered user", "req_id", reqID, "user_id", user.ID.Hex(), "username", user.Username)
	return user, token, nil
}

func (a *authService) Login(ctx context.Context, reqID int64, username string, password string) (model.User, string, error) {
	logger := a.logger
	logger.Debug("entering Login", "req_id", reqID, "username", username)

	info, err := a.lookupLoginInfo(ctx, username)
	if err != nil {
		return model.User{}, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(info.Password), []byte(password)) != nil {
		return model.User{}, "", ErrInvalidCredentials
	}

	userID, err := primitive.ObjectIDFromHex(info.UserID)
	if err != nil {
		return model.User{}, "", ErrInvalidCredentials
	}
	var user model.User
	if err := a.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return model.User{}, "", ErrInvalidCredentials
		}
		return model.User{}, "", err
	}

	token, err := a.issueToken(user)
	if err != nil {
		return model.User{}, "", err
	}
	return user, token, nil
}

// lookupLoginInfo consults memcached first and falls back to mongodb, filling
// the cache on a miss.
func (a *authService) lookupLoginInfo(ctx context.Context, username string) (loginInfo, error) {
	logger := a.logger
	key := "login:" + username

	item, err := a.cache.Get(key)
	if err == nil {
		var info loginInfo
		if err := json.Unmarshal(item.Value, &info); err == nil {
			return info, nil
		}
	} else if err != memcache.ErrCacheMiss {
		logger.Error("error reading login info from memcached", "msg", err.Error())
	}

	var user model.User
	if err := a.users.FindOne(ctx, bson.M{"username": username}).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return loginInfo{}, ErrInvalidCredentials
		}
		return loginInfo{}, err
	}
	info := loginInfo{UserID: user.ID.Hex(), Password: user.Password}
	if blob, err := json.Marshal(info); err == nil {
		if err := a.cache.Set(&memcache.Item{Key: key, Value: blob, Expiration: 3600}); err != nil {
			logger.Error("error writing login info to memcached", "msg", err.Error())
		}
	}
	return info, nil
}

func (a *authService) issueToken(user model.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Username:  user.Username,
		UserID:    user.ID.Hex(),
		Timestamp: now.UnixMilli(),
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(a.ttl).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.secret))
}

func (a *authService) VerifyToken(ctx context.Context, tokenStr string) (model.User, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(a.secret), nil
	})
	if err != nil || !token.Valid {
		return model.User{}, ErrInvalidToken
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return model.User{}, ErrInvalidToken
	}
	var user model.User
	if err := a.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			// token refers to a deleted user
			return model.User{}, ErrInvalidToken
		}
		return model.User{}, err
	}
	return user, nil
}
