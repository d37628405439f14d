package handlers

import (
	"encoding/json"
	"net/http"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/formgate/formgate-api/api"
	"github.com/formgate/formgate-api/config"
	"github.com/formgate/formgate-api/databases"
	"github.com/formgate/formgate-api/models"
)

// Stats serves the owner dashboard aggregations
type Stats struct {
	ADB databases.ApplicationDatabase
}

// OwnerStatsHandler returns per-status counts and the average rating for the
// authed owner's applications
func (s Stats) OwnerStatsHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, err := authedOwnerID(r)
	if err != nil {
		config.ErrorStatus("failed to resolve owner", http.StatusUnauthorized, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	pipeline := []bson.M{
		{"$match": bson.M{"ownerId": ownerID}},
		{"$group": bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}},
		{"$sort": bson.M{"count": -1}},
	}
	cursor, err := s.ADB.Aggregate(ctx, pipeline)
	if err != nil {
		config.ErrorStatus("failed to aggregate status counts", http.StatusInternalServerError, w, err)
		return
	}
	var byStatus []models.StatusCounts
	if err := cursor.Decode(&byStatus); err != nil {
		config.ErrorStatus("failed to decode status counts", http.StatusInternalServerError, w, err)
		return
	}
	if byStatus == nil {
		byStatus = []models.StatusCounts{}
	}

	var total int64
	for _, bucket := range byStatus {
		total += bucket.Count
	}

	ratingPipeline := []bson.M{
		{"$match": bson.M{"ownerId": ownerID, "rating": bson.M{"$gt": 0}}},
		{"$group": bson.M{"_id": nil, "avg": bson.M{"$avg": "$rating"}}},
	}
	ratingCursor, err := s.ADB.Aggregate(ctx, ratingPipeline)
	if err != nil {
		config.ErrorStatus("failed to aggregate ratings", http.StatusInternalServerError, w, err)
		return
	}
	var ratings []struct {
		Avg float64 `bson:"avg"`
	}
	if err := ratingCursor.Decode(&ratings); err != nil {
		config.ErrorStatus("failed to decode ratings", http.StatusInternalServerError, w, err)
		return
	}

	stats := models.OwnerStats{Total: total, ByStatus: byStatus}
	if len(ratings) > 0 {
		stats.AverageRating = ratings[0].Avg
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(stats)
}
