package catalog

import (
	"context"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jhoicas/storefront-api/internal/application/dto"
	"github.com/jhoicas/storefront-api/internal/domain"
	"github.com/jhoicas/storefront-api/internal/domain/entity"
	"github.com/jhoicas/storefront-api/internal/domain/repository"
)

// Lookup resuelve un producto del catálogo o devuelve ErrNotFound.
// Acepta el repositorio de la tx del caller para leer el precio en el mismo snapshot.
func Lookup(ctx context.Context, products repository.ProductRepository, id int64) (*entity.Product, error) {
	if id <= 0 {
		return nil, domain.ErrNotFound
	}
	p, err := products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

// ProductUseCase catálogo: listado público y CRUD de administración.
type ProductUseCase struct {
	repo repository.ProductRepository
}

// NewProductUseCase construye el caso de uso.
func NewProductUseCase(repo repository.ProductRepository) *ProductUseCase {
	return &ProductUseCase{repo: repo}
}

// List busca productos por nombre (subcadena) y categoría, sin distinguir mayúsculas.
func (uc *ProductUseCase) List(ctx context.Context, q dto.ProductQuery) (*dto.ProductListResponse, error) {
	q.DefaultPage()
	filter := entity.ProductFilter{
		Search:   fold(q.Search),
		Category: fold(q.Category),
		Limit:    q.Limit,
		Offset:   q.Offset(),
	}
	list, total, err := uc.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &dto.ProductListResponse{
		Products: lo.Map(list, func(p *entity.Product, _ int) dto.ProductResponse { return *toProductResponse(p) }),
		Page:     dto.PageResponse{Page: q.Page, Limit: q.Limit, Total: total},
	}, nil
}

// Get obtiene un producto por ID.
func (uc *ProductUseCase) Get(ctx context.Context, id int64) (*dto.ProductResponse, error) {
	p, err := uc.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return toProductResponse(p), nil
}

// Lookup implementa la consulta de catálogo sobre el pool.
func (uc *ProductUseCase) Lookup(ctx context.Context, id int64) (*entity.Product, error) {
	return Lookup(ctx, uc.repo, id)
}

// Create crea un producto. Nombre, categoría y precio (>= 0) son obligatorios.
func (uc *ProductUseCase) Create(ctx context.Context, in dto.CreateProductRequest) (*dto.ProductResponse, error) {
	name := strings.TrimSpace(in.Name)
	category := strings.TrimSpace(in.Category)
	if name == "" || category == "" || in.Price == nil || in.Price.IsNegative() {
		return nil, domain.ErrInvalidInput
	}
	p := &entity.Product{
		Name:     name,
		Category: category,
		Price:    normalizePrice(*in.Price),
	}
	if err := uc.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return toProductResponse(p), nil
}

// Update actualiza solo los campos presentes. Los pedidos ya creados conservan su snapshot.
func (uc *ProductUseCase) Update(ctx context.Context, id int64, in dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	p, err := uc.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, domain.ErrInvalidInput
		}
		p.Name = name
	}
	if in.Category != nil {
		category := strings.TrimSpace(*in.Category)
		if category == "" {
			return nil, domain.ErrInvalidInput
		}
		p.Category = category
	}
	if in.Price != nil {
		if in.Price.IsNegative() {
			return nil, domain.ErrInvalidInput
		}
		p.Price = normalizePrice(*in.Price)
	}
	if err := uc.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return toProductResponse(p), nil
}

// Delete elimina un producto. ErrConflict si algún pedido lo referencia.
func (uc *ProductUseCase) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return domain.ErrNotFound
	}
	return uc.repo.Delete(ctx, id)
}

// fold normaliza un término de búsqueda. Un Caser no se comparte entre goroutines.
func fold(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

// priceScale precisión de la columna price.
const priceScale = 2

// normalizePrice ajusta a la precisión de la columna price.
func normalizePrice(d decimal.Decimal) decimal.Decimal {
	return d.Round(priceScale)
}

func toProductResponse(p *entity.Product) *dto.ProductResponse {
	if p == nil {
		return nil
	}
	return &dto.ProductResponse{
		ID:        p.ID,
		Name:      p.Name,
		Category:  p.Category,
		Price:     dto.NewMoney(p.Price, priceScale),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
