package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nihalkurra/student-collab-hub/pkg/model"
)

// loadUserSummaries resolves referenced user ids into their populated
// summaries with a single query.
func loadUserSummaries(ctx context.Context, users *mongo.Collection, ids []primitive.ObjectID) (map[primitive.ObjectID]model.UserSummary, error) {
	out := make(map[primitive.ObjectID]model.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var docs []model.UserSummary
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	for _, d := range docs {
		out[d.ID] = d
	}
	return out, nil
}

// summariesFor keeps the order of ids and silently drops dangling references.
func summariesFor(ids []primitive.ObjectID, m map[primitive.ObjectID]model.UserSummary) []model.UserSummary {
	out := make([]model.UserSummary, 0, len(ids))
	for _, id := range ids {
		if s, ok := m[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

func containsID(list []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
