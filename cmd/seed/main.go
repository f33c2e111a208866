// seed carga productos en el catálogo desde un CSV (name,category,price) y opcionalmente
// crea un usuario administrador.
//
// Uso: go run ./cmd/seed [-latin1] [-admin usuario:password] productos.csv
// Con -latin1 el archivo se decodifica como ISO-8859-1 (exportaciones de hojas de cálculo).
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/jhoicas/storefront-api/internal/application/auth"
	"github.com/jhoicas/storefront-api/internal/application/catalog"
	"github.com/jhoicas/storefront-api/internal/application/dto"
	"github.com/jhoicas/storefront-api/internal/domain"
	"github.com/jhoicas/storefront-api/internal/domain/entity"
	"github.com/jhoicas/storefront-api/internal/infrastructure/postgres"
	"github.com/jhoicas/storefront-api/pkg/config"
	"github.com/jhoicas/storefront-api/pkg/logger"
)

func main() {
	latin1 := flag.Bool("latin1", false, "decodificar el CSV como ISO-8859-1")
	admin := flag.String("admin", "", "crear administrador usuario:password")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "uso: seed [-latin1] [-admin usuario:password] productos.csv")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cargar configuración: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "seed"})

	ctx := context.Background()
	if err := postgres.Migrate(cfg.DB.ConnectionString()); err != nil {
		log.Fatal().Err(err).Msg("migraciones")
	}
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	if *admin != "" {
		username, password, ok := strings.Cut(*admin, ":")
		if !ok {
			log.Fatal().Msg("-admin debe tener la forma usuario:password")
		}
		authUC := auth.NewAuthUseCase(postgres.NewUserRepository(pool), auth.JWTConfig{Secret: cfg.JWT.Secret})
		_, err := authUC.Register(ctx, dto.RegisterRequest{Username: username, Password: password, Role: entity.RoleAdmin})
		switch {
		case errors.Is(err, domain.ErrDuplicate):
			log.Info().Str("username", username).Msg("el administrador ya existe")
		case err != nil:
			log.Fatal().Err(err).Msg("crear administrador")
		default:
			log.Info().Str("username", username).Msg("administrador creado")
		}
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatal().Err(err).Msg("abrir CSV")
	}
	defer f.Close()

	var r io.Reader = f
	if *latin1 {
		r = transform.NewReader(f, charmap.ISO8859_1.NewDecoder())
	}

	products := catalog.NewProductUseCase(postgres.NewProductRepository(pool))
	created, skipped, err := load(ctx, products, r)
	if err != nil {
		log.Fatal().Err(err).Msg("importar productos")
	}
	log.Info().Int("created", created).Int("skipped", skipped).Msg("catálogo cargado")
}

// load importa filas name,category,price. La primera fila es el encabezado.
// Las filas inválidas se omiten y se cuentan en skipped.
func load(ctx context.Context, products *catalog.ProductUseCase, r io.Reader) (created, skipped int, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		return 0, 0, fmt.Errorf("leer encabezado: %w", err)
	}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return created, skipped, nil
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				skipped++
				continue
			}
			return created, skipped, err
		}
		price, err := decimal.NewFromString(strings.TrimSpace(rec[2]))
		if err != nil {
			skipped++
			continue
		}
		_, err = products.Create(ctx, dto.CreateProductRequest{Name: rec[0], Category: rec[1], Price: &price})
		if errors.Is(err, domain.ErrInvalidInput) {
			skipped++
			continue
		}
		if err != nil {
			return created, skipped, err
		}
		created++
	}
}
