// Package products is the read side of the catalog.
package products

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"storefront/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCatalog reads the products collection.
type MongoCatalog struct {
	coll *mongo.Collection
}

func NewMongoCatalog(coll *mongo.Collection) *MongoCatalog {
	return &MongoCatalog{coll: coll}
}

// idFilter matches both string ids and ObjectIds written by older tooling.
func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{id, oid}}}
	}
	return bson.M{"_id": id}
}

func (c *MongoCatalog) ResolveProduct(ctx context.Context, id string) (models.Product, error) {
	var p models.Product
	err := c.coll.FindOne(ctx, idFilter(id)).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Product{}, fmt.Errorf("product %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("find product %s: %w", id, err)
	}
	return p, nil
}

func (c *MongoCatalog) ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, error) {
	query := bson.M{}
	if f.Category != "" {
		query["category"] = f.Category
	}
	if f.Search != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		query["$or"] = bson.A{bson.M{"name": rx}, bson.M{"description": rx}}
	}

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := c.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer cursor.Close(ctx)

	products := []models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return products, nil
}

// MemoryCatalog serves a fixed product set.
type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[string]models.Product
}

func NewMemoryCatalog(ps ...models.Product) *MemoryCatalog {
	c := &MemoryCatalog{products: make(map[string]models.Product, len(ps))}
	for _, p := range ps {
		c.products[p.ID] = p
	}
	return c
}

// Put adds or replaces a product.
func (c *MemoryCatalog) Put(p models.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

func (c *MemoryCatalog) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.products, id)
}

func (c *MemoryCatalog) ResolveProduct(_ context.Context, id string) (models.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	if !ok {
		return models.Product{}, fmt.Errorf("product %s: %w", id, models.ErrNotFound)
	}
	return p, nil
}

func (c *MemoryCatalog) ListProducts(_ context.Context, f models.ProductFilter) ([]models.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	search := strings.ToLower(f.Search)
	out := []models.Product{}
	for _, p := range c.products {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
