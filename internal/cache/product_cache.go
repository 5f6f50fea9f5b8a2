package cache

import (
	"bakery-service/internal/models"
	"bakery-service/internal/repository"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const notFoundMarker = "notfound"

// CachedProductRepository is a cache-aside wrapper over the product
// repository for read-mostly catalog endpoints. Redis being unreachable
// degrades to the database, never to an error. Order transactions bypass
// this wrapper entirely: price and stock truth at order time is always the
// database.
type CachedProductRepository struct {
	realRepo repository.ProductRepository
	redis    *redis.Client
	ttl      time.Duration
}

func NewCachedProductRepository(realRepo repository.ProductRepository, redis *redis.Client) *CachedProductRepository {
	return &CachedProductRepository{
		realRepo: realRepo,
		redis:    redis,
		ttl:      5 * time.Minute,
	}
}

func productKey(id string) string {
	return fmt.Sprintf("product:%s", id)
}

func categoryKey(id string) string {
	return fmt.Sprintf("products:category:%s", id)
}

const allProductsKey = "products:all"

func (c *CachedProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	key := productKey(id)

	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if string(data) == notFoundMarker {
			return nil, repository.ErrNotFound
		}
		var product models.Product
		if err := json.Unmarshal(data, &product); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to unmarshal cached product, continuing with DB")
			break
		}
		return &product, nil
	case errors.Is(err, redis.Nil):
	default:
		log.Warn().Err(err).Msg("redis error, continuing with DB")
	}

	product, err := c.realRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if setErr := c.redis.Set(ctx, key, notFoundMarker, time.Minute).Err(); setErr != nil {
				log.Warn().Err(setErr).Msg("failed to cache notfound marker")
			}
		}
		return nil, err
	}

	c.store(ctx, key, product)
	return product, nil
}

func (c *CachedProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	return c.cachedList(ctx, allProductsKey, func() ([]models.Product, error) {
		return c.realRepo.GetAll(ctx)
	})
}

func (c *CachedProductRepository) GetByCategory(ctx context.Context, categoryID string) ([]models.Product, error) {
	return c.cachedList(ctx, categoryKey(categoryID), func() ([]models.Product, error) {
		return c.realRepo.GetByCategory(ctx, categoryID)
	})
}

func (c *CachedProductRepository) cachedList(ctx context.Context, key string, load func() ([]models.Product, error)) ([]models.Product, error) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err == nil {
		var products []models.Product
		if err := json.Unmarshal(data, &products); err == nil {
			return products, nil
		}
		log.Warn().Str("key", key).Msg("failed to unmarshal cached product list, continuing with DB")
	} else if !errors.Is(err, redis.Nil) {
		log.Warn().Err(err).Msg("redis error, continuing with DB")
	}

	products, err := load()
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, products)
	return products, nil
}

func (c *CachedProductRepository) store(ctx context.Context, key string, v any) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to marshal cache value")
		return
	}
	if err := c.redis.Set(ctx, key, jsonData, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to cache value")
	}
}

func (c *CachedProductRepository) Create(ctx context.Context, product *models.Product) error {
	if err := c.realRepo.Create(ctx, product); err != nil {
		return err
	}
	c.Invalidate(ctx, product.ProductID, product.CategoryID)
	return nil
}

func (c *CachedProductRepository) Update(ctx context.Context, product *models.Product) error {
	oldCategory := ""
	if old, err := c.realRepo.GetByID(ctx, product.ProductID); err == nil {
		oldCategory = old.CategoryID
	}

	if err := c.realRepo.Update(ctx, product); err != nil {
		c.Invalidate(ctx, product.ProductID, oldCategory)
		return err
	}

	c.Invalidate(ctx, product.ProductID, product.CategoryID)
	if oldCategory != "" && oldCategory != product.CategoryID {
		c.invalidateKey(ctx, categoryKey(oldCategory))
	}
	return nil
}

func (c *CachedProductRepository) Delete(ctx context.Context, id string) error {
	category := ""
	if old, err := c.realRepo.GetByID(ctx, id); err == nil {
		category = old.CategoryID
	}

	if err := c.realRepo.Delete(ctx, id); err != nil {
		return err
	}
	c.Invalidate(ctx, id, category)
	return nil
}

// Invalidate drops the cached entry for a product and every list that may
// contain it. Called by the stock paths after any write that changes stock
// outside this wrapper.
func (c *CachedProductRepository) Invalidate(ctx context.Context, productID, categoryID string) {
	if productID != "" {
		c.invalidateKey(ctx, productKey(productID))
	}
	c.invalidateKey(ctx, allProductsKey)
	if categoryID != "" {
		c.invalidateKey(ctx, categoryKey(categoryID))
	}
}

// InvalidateAll drops every catalog list key; used after bulk stock writes
// like cancellations where the touched categories are unknown.
func (c *CachedProductRepository) InvalidateAll(ctx context.Context) {
	iter := c.redis.Scan(ctx, 0, "product*", 0).Iterator()
	for iter.Next(ctx) {
		c.invalidateKey(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Warn().Err(err).Msg("failed to scan cache keys for invalidation")
	}
}

func (c *CachedProductRepository) invalidateKey(ctx context.Context, key string) {
	if err := c.redis.Del(ctx, key).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to invalidate cache key")
	}
}
