package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/market-ledger/internal/model"
)

// ProductRepository reads the catalog's products table; the ledger never writes it
// outside of tests and seeding.
type ProductRepository interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]*model.Product, error)
	ListIDsBySeller(ctx context.Context, sellerID string) ([]string, error)
	Upsert(ctx context.Context, p *model.Product) error
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepository{db: db} }

func (r *productRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*model.Product, error) {
	out := make(map[string]*model.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []*model.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}

func (r *productRepository) ListIDsBySeller(ctx context.Context, sellerID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.Product{}).Where("seller_id = ?", sellerID).Pluck("id", &ids).Error
	return ids, err
}

func (r *productRepository) Upsert(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Save(p).Error
}
