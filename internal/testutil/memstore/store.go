// Package memstore implementa los puertos de persistencia en memoria para tests.
// Una transacción toma el lock global y, si fn falla, restaura la copia previa del estado.
package memstore

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jhoicas/storefront-api/internal/domain"
	"github.com/jhoicas/storefront-api/internal/domain/entity"
	"github.com/jhoicas/storefront-api/internal/domain/repository"
)

type cartItem struct {
	productID int64
	quantity  int
}

type state struct {
	users    map[string]entity.User
	products map[int64]entity.Product
	carts    map[string]entity.Cart // por userID
	items    map[int64][]cartItem   // por cartID, en orden de inserción
	orders   []entity.Order
	outbox   []entity.OutboxEvent
	seq      int64
}

func (s *state) clone() *state {
	c := &state{
		users:    make(map[string]entity.User, len(s.users)),
		products: make(map[int64]entity.Product, len(s.products)),
		carts:    make(map[string]entity.Cart, len(s.carts)),
		items:    make(map[int64][]cartItem, len(s.items)),
		orders:   make([]entity.Order, len(s.orders)),
		outbox:   make([]entity.OutboxEvent, len(s.outbox)),
		seq:      s.seq,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.carts {
		c.carts[k] = v
	}
	for k, v := range s.items {
		c.items[k] = slices.Clone(v)
	}
	for i, o := range s.orders {
		o.Lines = slices.Clone(o.Lines)
		c.orders[i] = o
	}
	copy(c.outbox, s.outbox)
	return c
}

func (s *state) next() int64 {
	s.seq++
	return s.seq
}

// Store estado compartido; los repositorios fuera de tx toman el lock por operación.
type Store struct {
	mu        sync.Mutex
	st        *state
	failAfter error // si no es nil, la próxima tx falla al "commit"
}

// New crea un store vacío.
func New() *Store {
	return &Store{st: &state{
		users:    map[string]entity.User{},
		products: map[int64]entity.Product{},
		carts:    map[string]entity.Cart{},
		items:    map[int64][]cartItem{},
	}}
}

// FailNextCommit hace que la próxima transacción ejecute fn completa y luego falle con err.
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAfter = err
}

// Users, Products, Carts, Orders y Outbox devuelven repositorios fuera de transacción.
func (s *Store) Users() repository.UserRepository       { return &users{view{s: s}} }
func (s *Store) Products() repository.ProductRepository { return &products{view{s: s}} }
func (s *Store) Carts() repository.CartRepository       { return &carts{view{s: s}} }
func (s *Store) Orders() repository.OrderRepository     { return &orders{view{s: s}} }
func (s *Store) Outbox() repository.OutboxRepository    { return &outbox{view{s: s}} }

// RunCart implementa cart.TxRunner.
func (s *Store) RunCart(ctx context.Context, fn func(repository.CartRepository, repository.ProductRepository) error) error {
	return s.tx(ctx, func(v view) error {
		return fn(&carts{v}, &products{v})
	})
}

// RunCheckout implementa checkout.TxRunner.
func (s *Store) RunCheckout(ctx context.Context, fn func(repository.CartRepository, repository.OrderRepository, repository.OutboxRepository) error) error {
	return s.tx(ctx, func(v view) error {
		return fn(&carts{v}, &orders{v}, &outbox{v})
	})
}

func (s *Store) tx(ctx context.Context, fn func(v view) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	err := fn(view{s: s, inTx: true})
	if err == nil && s.failAfter != nil {
		err, s.failAfter = s.failAfter, nil
	}
	if err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// view acceso al estado; dentro de tx el lock ya está tomado.
type view struct {
	s    *Store
	inTx bool
}

func (v view) do(fn func(st *state) error) error {
	if !v.inTx {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	}
	return fn(v.s.st)
}

// ── users ─────────────────────────────────────────────────────────────────────

type users struct{ view }

func (r *users) Create(_ context.Context, u *entity.User) error {
	return r.do(func(st *state) error {
		for _, existing := range st.users {
			if existing.Username == u.Username {
				return domain.ErrDuplicate
			}
		}
		st.users[u.ID] = *u
		return nil
	})
}

func (r *users) GetByID(_ context.Context, id string) (*entity.User, error) {
	var out *entity.User
	err := r.do(func(st *state) error {
		if u, ok := st.users[id]; ok {
			out = &u
		}
		return nil
	})
	return out, err
}

func (r *users) GetByUsername(_ context.Context, username string) (*entity.User, error) {
	var out *entity.User
	err := r.do(func(st *state) error {
		for _, u := range st.users {
			if u.Username == username {
				u := u
				out = &u
			}
		}
		return nil
	})
	return out, err
}

// ── products ──────────────────────────────────────────────────────────────────

type products struct{ view }

func (r *products) Create(_ context.Context, p *entity.Product) error {
	return r.do(func(st *state) error {
		now := time.Now().UTC()
		p.ID, p.CreatedAt, p.UpdatedAt = st.next(), now, now
		st.products[p.ID] = *p
		return nil
	})
}

func (r *products) GetByID(_ context.Context, id int64) (*entity.Product, error) {
	var out *entity.Product
	err := r.do(func(st *state) error {
		if p, ok := st.products[id]; ok {
			out = &p
		}
		return nil
	})
	return out, err
}

func (r *products) Update(_ context.Context, p *entity.Product) error {
	return r.do(func(st *state) error {
		if _, ok := st.products[p.ID]; !ok {
			return domain.ErrNotFound
		}
		p.UpdatedAt = time.Now().UTC()
		st.products[p.ID] = *p
		return nil
	})
}

func (r *products) Delete(_ context.Context, id int64) error {
	return r.do(func(st *state) error {
		if _, ok := st.products[id]; !ok {
			return domain.ErrNotFound
		}
		for _, o := range st.orders {
			for _, l := range o.Lines {
				if l.ProductID == id {
					return domain.ErrConflict
				}
			}
		}
		delete(st.products, id)
		for cartID, items := range st.items {
			st.items[cartID] = slices.DeleteFunc(items, func(it cartItem) bool { return it.productID == id })
		}
		return nil
	})
}

func (r *products) List(_ context.Context, f entity.ProductFilter) ([]*entity.Product, int, error) {
	var out []*entity.Product
	var total int
	err := r.do(func(st *state) error {
		ids := make([]int64, 0, len(st.products))
		for id := range st.products {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		var matched []*entity.Product
		for _, id := range ids {
			p := st.products[id]
			if f.Search != "" && !strings.Contains(strings.ToLower(p.Name), f.Search) {
				continue
			}
			if f.Category != "" && strings.ToLower(p.Category) != f.Category {
				continue
			}
			matched = append(matched, &p)
		}
		total = len(matched)
		start := min(f.Offset, total)
		end := min(start+f.Limit, total)
		out = matched[start:end]
		return nil
	})
	return out, total, err
}

// ── carts ─────────────────────────────────────────────────────────────────────

type carts struct{ view }

func (r *carts) GetOrCreate(_ context.Context, userID string) (*entity.Cart, error) {
	var out entity.Cart
	err := r.do(func(st *state) error {
		c, ok := st.carts[userID]
		if !ok {
			c = entity.Cart{ID: st.next(), UserID: userID, CreatedAt: time.Now().UTC()}
			st.carts[userID] = c
		}
		out = c
		return nil
	})
	return &out, err
}

func (r *carts) Lock(_ context.Context, cartID int64) error {
	return r.do(func(st *state) error {
		for _, c := range st.carts {
			if c.ID == cartID {
				return nil
			}
		}
		return domain.ErrNotFound
	})
}

func (r *carts) ListLines(_ context.Context, cartID int64) ([]entity.CartLine, error) {
	lines := make([]entity.CartLine, 0)
	err := r.do(func(st *state) error {
		for _, it := range st.items[cartID] {
			p, ok := st.products[it.productID]
			if !ok {
				continue
			}
			lines = append(lines, entity.CartLine{
				ProductID: it.productID, Quantity: it.quantity,
				Name: p.Name, Price: p.Price, Category: p.Category,
			})
		}
		return nil
	})
	return lines, err
}

func (r *carts) AddLine(_ context.Context, cartID, productID int64, quantity int) error {
	return r.do(func(st *state) error {
		if _, ok := st.products[productID]; !ok {
			return domain.ErrNotFound
		}
		items := st.items[cartID]
		for i := range items {
			if items[i].productID == productID {
				if items[i].quantity > entity.MaxLineQuantity-quantity {
					return domain.ErrInvalidInput
				}
				items[i].quantity += quantity
				return nil
			}
		}
		st.items[cartID] = append(items, cartItem{productID: productID, quantity: quantity})
		return nil
	})
}

func (r *carts) SetLineQuantity(_ context.Context, cartID, productID int64, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, errors.New("memstore: quantity debe ser positiva")
	}
	found := false
	err := r.do(func(st *state) error {
		for i := range st.items[cartID] {
			if st.items[cartID][i].productID == productID {
				st.items[cartID][i].quantity = quantity
				found = true
			}
		}
		return nil
	})
	return found, err
}

func (r *carts) DeleteLine(_ context.Context, cartID, productID int64) (bool, error) {
	found := false
	err := r.do(func(st *state) error {
		before := len(st.items[cartID])
		st.items[cartID] = slices.DeleteFunc(st.items[cartID], func(it cartItem) bool { return it.productID == productID })
		found = len(st.items[cartID]) < before
		return nil
	})
	return found, err
}

func (r *carts) ClearLines(_ context.Context, cartID int64) (int64, error) {
	var n int64
	err := r.do(func(st *state) error {
		n = int64(len(st.items[cartID]))
		delete(st.items, cartID)
		return nil
	})
	return n, err
}

// ── orders ────────────────────────────────────────────────────────────────────

type orders struct{ view }

func (r *orders) Create(_ context.Context, o *entity.Order) error {
	return r.do(func(st *state) error {
		o.ID = st.next()
		for i := range o.Lines {
			o.Lines[i].OrderID = o.ID
		}
		stored := *o
		stored.Lines = slices.Clone(o.Lines)
		st.orders = append(st.orders, stored)
		return nil
	})
}

func (r *orders) GetByID(_ context.Context, id int64) (*entity.Order, error) {
	var out *entity.Order
	err := r.do(func(st *state) error {
		for _, o := range st.orders {
			if o.ID == id {
				o.Lines = slices.Clone(o.Lines)
				out = &o
			}
		}
		return nil
	})
	return out, err
}

func (r *orders) ListByUser(_ context.Context, userID string) ([]*entity.Order, error) {
	out := make([]*entity.Order, 0)
	err := r.do(func(st *state) error {
		for _, o := range st.orders {
			if o.UserID == userID {
				o.Lines = slices.Clone(o.Lines)
				out = append(out, &o)
			}
		}
		return nil
	})
	return out, err
}

// ── outbox ────────────────────────────────────────────────────────────────────

type outbox struct{ view }

func (r *outbox) Insert(_ context.Context, e *entity.OutboxEvent) error {
	return r.do(func(st *state) error {
		e.ID = st.next()
		e.CreatedAt = time.Now().UTC()
		st.outbox = append(st.outbox, *e)
		return nil
	})
}

func (r *outbox) FetchPending(_ context.Context, limit int) ([]*entity.OutboxEvent, error) {
	var out []*entity.OutboxEvent
	err := r.do(func(st *state) error {
		for _, e := range st.outbox {
			if e.SentAt == nil && len(out) < limit {
				out = append(out, &e)
			}
		}
		return nil
	})
	return out, err
}

func (r *outbox) MarkSent(_ context.Context, id int64) error {
	return r.do(func(st *state) error {
		now := time.Now().UTC()
		for i := range st.outbox {
			if st.outbox[i].ID == id {
				st.outbox[i].SentAt = &now
			}
		}
		return nil
	})
}
