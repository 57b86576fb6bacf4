package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"storefront/models"
	"storefront/utils"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const IdempotencyHeader = "Idempotency-Key"

// IdempotencyStore keeps one record per (user, key). Keys of different users never clash.
type IdempotencyStore interface {
	// Reserve stores rec unless the caller already used its key. On a clash the existing
	// record is returned and nothing is written.
	Reserve(ctx context.Context, rec models.IdempotencyRecord) (existing *models.IdempotencyRecord, err error)
	Complete(ctx context.Context, userID, key string, resp models.StoredResponse) error
	// Release forgets a key whose request did not succeed.
	Release(ctx context.Context, userID, key string) error
}

// MongoIdempotencyStore relies on a unique index on (userid, key) and a TTL index on
// expires_at.
type MongoIdempotencyStore struct {
	coll *mongo.Collection
}

func NewMongoIdempotencyStore(coll *mongo.Collection) *MongoIdempotencyStore {
	return &MongoIdempotencyStore{coll: coll}
}

func (s *MongoIdempotencyStore) EnsureIndexes(ctx context.Context) error {
	idxs := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userid", Value: 1}, {Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_user_key"),
		},
		{
			Keys:    bson.M{"expires_at": 1},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_expires_at"),
		},
	}
	_, err := s.coll.Indexes().CreateMany(ctx, idxs)
	return err
}

func (s *MongoIdempotencyStore) Reserve(ctx context.Context, rec models.IdempotencyRecord) (*models.IdempotencyRecord, error) {
	_, err := s.coll.InsertOne(ctx, rec)
	if err == nil {
		return nil, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("reserve idempotency key: %w", err)
	}

	var existing models.IdempotencyRecord
	if err := s.coll.FindOne(ctx, bson.M{"userid": rec.UserID, "key": rec.Key}).Decode(&existing); err != nil {
		return nil, fmt.Errorf("load idempotency key: %w", err)
	}
	return &existing, nil
}

func (s *MongoIdempotencyStore) Release(ctx context.Context, userID, key string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"userid": userID, "key": key, "response": bson.M{"$exists": false}})
	return err
}

func (s *MongoIdempotencyStore) Complete(ctx context.Context, userID, key string, resp models.StoredResponse) error {
	_, err := s.coll.UpdateOne(ctx, bson.M{"userid": userID, "key": key}, bson.M{"$set": bson.M{"response": resp}})
	return err
}

// MemoryIdempotencyStore is a process-local IdempotencyStore. Records do not expire.
type MemoryIdempotencyStore struct {
	mu   sync.Mutex
	recs map[[2]string]models.IdempotencyRecord
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{recs: make(map[[2]string]models.IdempotencyRecord)}
}

func (m *MemoryIdempotencyStore) Reserve(_ context.Context, rec models.IdempotencyRecord) (*models.IdempotencyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := [2]string{rec.UserID, rec.Key}
	if existing, ok := m.recs[id]; ok {
		return &existing, nil
	}
	m.recs[id] = rec
	return nil, nil
}

func (m *MemoryIdempotencyStore) Complete(_ context.Context, userID, key string, resp models.StoredResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := [2]string{userID, key}
	rec, ok := m.recs[id]
	if !ok {
		return nil
	}
	rec.Response = &resp
	m.recs[id] = rec
	return nil
}

func (m *MemoryIdempotencyStore) Release(_ context.Context, userID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := [2]string{userID, key}
	if m.recs[id].Response == nil {
		delete(m.recs, id)
	}
	return nil
}

// Idempotent replays the stored response when a client repeats a request with the same
// Idempotency-Key. Requests without the header pass through. Only 2xx replies are kept; any
// other outcome releases the key so the client may retry with it.
func Idempotent(store IdempotencyStore, ttl time.Duration) Middleware {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			key := r.Header.Get(IdempotencyHeader)
			if key == "" {
				next(w, r, ps)
				return
			}

			userID := utils.GetUserIDFromRequest(r)
			body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
			if err != nil {
				utils.RespondWithError(w, http.StatusBadRequest, "failed to read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			now := time.Now().UTC()
			rec := models.IdempotencyRecord{
				Key:         key,
				Method:      r.Method,
				Path:        r.URL.Path,
				UserID:      userID,
				RequestHash: requestHash(r, body, userID),
				CreatedAt:   now,
				ExpiresAt:   now.Add(ttl),
			}

			existing, err := store.Reserve(r.Context(), rec)
			if err != nil {
				slog.Error("idempotency reserve failed", "key", key, "err", err)
				utils.RespondWithError(w, http.StatusInternalServerError, "idempotency lookup error")
				return
			}

			if existing != nil {
				switch {
				case existing.RequestHash != rec.RequestHash:
					utils.RespondWithError(w, http.StatusConflict, "idempotency-key reused with a different request")
				case existing.Response == nil:
					utils.RespondWithError(w, http.StatusConflict, "request with this idempotency-key is not complete")
				default:
					replay(w, *existing.Response)
				}
				return
			}

			crw := newCaptureWriter(w)
			next(crw, r, ps)

			bg := context.WithoutCancel(r.Context())
			if crw.status < 200 || crw.status > 299 {
				if err := store.Release(bg, userID, key); err != nil {
					slog.Warn("idempotency key not released", "key", key, "err", err)
				}
				return
			}
			resp := models.StoredResponse{
				Status:      crw.status,
				ContentType: w.Header().Get("Content-Type"),
				Body:        crw.buf.Bytes(),
			}
			if err := store.Complete(bg, userID, key, resp); err != nil {
				slog.Warn("idempotency response not stored", "key", key, "err", err)
			}
		}
	}
}

func replay(w http.ResponseWriter, resp models.StoredResponse) {
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

func requestHash(r *http.Request, body []byte, userID string) string {
	h := sha256.New()
	h.Write([]byte(r.Method + ":" + r.URL.Path + ":" + userID + ":"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// captureWriter tees the response body so it can be stored.
type captureWriter struct {
	http.ResponseWriter
	status      int
	buf         bytes.Buffer
	wroteHeader bool
}

func newCaptureWriter(w http.ResponseWriter) *captureWriter {
	return &captureWriter{ResponseWriter: w, status: http.StatusOK}
}

func (c *captureWriter) WriteHeader(code int) {
	if c.wroteHeader {
		return
	}
	c.status = code
	c.wroteHeader = true
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	c.wroteHeader = true
	c.buf.Write(b)
	return c.ResponseWriter.Write(b)
}
