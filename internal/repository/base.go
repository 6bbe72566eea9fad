// Package repository implements the data access layer on MongoDB.
package repository

import (
	"context"
	"errors"
	"regexp"

	"platefeed/internal/models"
	"platefeed/internal/observability"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel/trace"
)

// op instruments one store call with a span, a latency sample and error logging.
type op struct {
	collection string
	name       string
	span       trace.Span
	done       func()
	log        *observability.RepoLogger
}

func startOp(ctx context.Context, log *observability.RepoLogger, collection, name string) (context.Context, *op) {
	ctx, span := observability.StartStoreSpan(ctx, collection, name)
	return ctx, &op{
		collection: collection,
		name:       name,
		span:       span,
		done:       observability.TrackStoreOperation(collection, name),
		log:        log,
	}
}

// end finishes the operation. Only store failures are logged and marked on
// the span; not-found and conflict outcomes are expected results.
func (o *op) end(ctx context.Context, err error) {
	o.done()
	if isStoreFailure(err) {
		o.log.LogError(ctx, err, o.name)
		observability.EndSpan(o.span, err)
		return
	}
	observability.EndSpan(o.span, nil)
}

func isStoreFailure(err error) bool {
	if err == nil || errors.Is(err, mongo.ErrNoDocuments) || errors.Is(err, ErrStaleRestaurant) {
		return false
	}
	code := models.ErrorCode(err)
	return code == "" || code == models.CodeInternal
}

// mapError converts driver errors into application errors.
func mapError(err error, resource string, id any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.NewNotFoundError(resource, id)
	case mongo.IsDuplicateKeyError(err):
		return models.NewConflictError(resource+" already exists", nil)
	default:
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return models.NewInternalError(err)
	}
}

// geoWithin matches documents whose location lies within radiusMeters of point.
// Unlike $near it is accepted by countDocuments and honours an explicit sort.
func geoWithin(point models.GeoPoint, radiusMeters float64) bson.M {
	const earthRadiusMeters = 6378100.0
	return bson.M{"location": bson.M{"$geoWithin": bson.M{
		"$centerSphere": bson.A{
			bson.A{point.Longitude(), point.Latitude()},
			radiusMeters / earthRadiusMeters,
		},
	}}}
}

// near matches the same area as geoWithin, ordered by distance.
func near(point models.GeoPoint, radiusMeters float64) bson.M {
	return bson.M{"location": bson.M{"$near": bson.M{
		"$geometry":    bson.M{"type": "Point", "coordinates": bson.A{point.Longitude(), point.Latitude()}},
		"$maxDistance": radiusMeters,
	}}}
}

// containsInsensitive builds a case-insensitive substring match for user input.
func containsInsensitive(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}
