package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/storefront-api/internal/application/checkout"
)

var _ checkout.IdempotencyStore = (*IdempotencyStore)(nil)

// pending valor de una clave reservada cuyo checkout aún no termina.
const pending = "pending"

// IdempotencyStore guarda claves de checkout en Redis: SET NX con TTL al reservar,
// el ID del pedido al completar, DEL al liberar.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore construye el almacén. ttl <= 0 usa 24h.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Reserve reserva la clave. Si ya existe devuelve el pedido guardado o 0 si está en curso.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (int64, bool, error) {
	k := idempotencyKey(key)
	ok, err := s.client.SetNX(ctx, k, pending, s.ttl).Result()
	if err != nil {
		return 0, false, fmt.Errorf("redis setnx failed: %w", err)
	}
	if ok {
		return 0, true, nil
	}

	val, err := s.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expiró entre SETNX y GET: se trata como en curso y el cliente reintenta
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis get failed: %w", err)
	}
	if val == pending {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("valor inválido para %s: %w", k, err)
	}
	return id, false, nil
}

// Complete asocia la clave al pedido creado y renueva el TTL.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, orderID int64) error {
	if err := s.client.Set(ctx, idempotencyKey(key), strconv.FormatInt(orderID, 10), s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Release borra la reserva para permitir un nuevo intento.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, idempotencyKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("checkout:%s", key)
}
