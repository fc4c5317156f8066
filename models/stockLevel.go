package models

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockLevel is the inventory ledger row for one (store, variant): the single point of
// truth for on-hand quantity. Every mutation happens under SELECT ... FOR UPDATE.
type StockLevel struct {
	ID                int       `gorm:"primary_key" json:"id"`
	StoreId           int       `gorm:"not null;uniqueIndex:uniq_stock_level,priority:1" json:"store_id"`
	VariantId         int       `gorm:"not null;index;uniqueIndex:uniq_stock_level,priority:2" json:"variant_id"`
	Quantity          int       `gorm:"not null;default:0;check:chk_stock_levels_quantity,quantity >= 0" json:"quantity"`
	LowStockThreshold int       `gorm:"not null;default:0;check:chk_stock_levels_threshold,low_stock_threshold >= 0" json:"low_stock_threshold"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsLowStock reports whether a configured threshold has been reached.
func (s StockLevel) IsLowStock() bool {
	return s.LowStockThreshold > 0 && s.Quantity <= s.LowStockThreshold
}

type stockKey struct {
	StoreId   int
	VariantId int
}

func (k stockKey) String() string {
	return fmt.Sprintf("store %d variant %d", k.StoreId, k.VariantId)
}

// sortStockKeys orders keys by (store, variant). Every code path locks ledger rows in this
// order, so two transactions touching the same rows cannot deadlock on each other.
func sortStockKeys(keys []stockKey) []stockKey {
	out := utils.UniqueSlice(keys)
	sort.Slice(out, func(i, j int) bool {
		if out[i].StoreId != out[j].StoreId {
			return out[i].StoreId < out[j].StoreId
		}
		return out[i].VariantId < out[j].VariantId
	})
	return out
}

// lockStockLevel locks the ledger row FOR UPDATE. With create=true a missing row is first
// inserted at quantity 0; otherwise a missing row is returned as nil.
func lockStockLevel(tx *gorm.DB, key stockKey, create bool) (*StockLevel, error) {
	if create {
		seed := StockLevel{StoreId: key.StoreId, VariantId: key.VariantId}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil && !utils.IsDuplicateKeyErr(err) {
			return nil, utils.TranslateDBError(err)
		}
	}
	var levels []StockLevel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("store_id = ? AND variant_id = ?", key.StoreId, key.VariantId).
		Limit(1).Find(&levels).Error; err != nil {
		return nil, utils.TranslateDBError(err)
	}
	if len(levels) == 0 {
		return nil, nil
	}
	return &levels[0], nil
}

// lockStockLevels locks every key in deterministic order and returns them by key.
// Missing rows map to a zero-quantity StockLevel with ID 0.
func lockStockLevels(tx *gorm.DB, keys []stockKey, create bool) (map[stockKey]*StockLevel, error) {
	locked := make(map[stockKey]*StockLevel, len(keys))
	for _, key := range sortStockKeys(keys) {
		level, err := lockStockLevel(tx, key, create)
		if err != nil {
			return nil, err
		}
		if level == nil {
			level = &StockLevel{StoreId: key.StoreId, VariantId: key.VariantId}
		}
		locked[key] = level
	}
	return locked, nil
}

// deductLockedStock subtracts qty from a row already locked by this transaction.
// The quantity guard in the WHERE clause keeps the row non-negative even if a caller skipped the check.
func deductLockedStock(tx *gorm.DB, level *StockLevel, qty int, lineNo int) error {
	if qty <= 0 {
		return nil
	}
	if level.ID == 0 || level.Quantity < qty {
		return &StockError{LineNo: lineNo, StoreId: level.StoreId, VariantId: level.VariantId, Requested: qty, Available: level.Quantity}
	}
	result := tx.Model(&StockLevel{}).
		Where("id = ? AND quantity >= ?", level.ID, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))
	if result.Error != nil {
		return utils.TranslateDBError(result.Error)
	}
	if result.RowsAffected != 1 {
		return &StockError{LineNo: lineNo, StoreId: level.StoreId, VariantId: level.VariantId, Requested: qty, Available: level.Quantity}
	}
	level.Quantity -= qty
	return nil
}

// incrementLockedStock adds qty to a row already locked (and created) by this transaction.
func incrementLockedStock(tx *gorm.DB, level *StockLevel, qty int) error {
	if qty <= 0 {
		return nil
	}
	if level.ID == 0 {
		return fmt.Errorf("stock level for %s is not locked", stockKey{level.StoreId, level.VariantId})
	}
	if err := tx.Model(&StockLevel{}).Where("id = ?", level.ID).
		Update("quantity", gorm.Expr("quantity + ?", qty)).Error; err != nil {
		return utils.TranslateDBError(err)
	}
	level.Quantity += qty
	return nil
}

// IncrementStockInTx locks (creating if needed) and increments one ledger row inside tx.
func IncrementStockInTx(tx *gorm.DB, storeId int, variantId int, qty int) (*StockLevel, error) {
	if qty <= 0 {
		return nil, &InvariantError{Message: "increment quantity must be > 0"}
	}
	level, err := lockStockLevel(tx, stockKey{StoreId: storeId, VariantId: variantId}, true)
	if err != nil {
		return nil, err
	}
	if err := incrementLockedStock(tx, level, qty); err != nil {
		return nil, err
	}
	return level, nil
}

// DeductStockInTx locks and decrements one ledger row inside tx; all-or-nothing.
func DeductStockInTx(tx *gorm.DB, storeId int, variantId int, qty int) (*StockLevel, error) {
	if qty <= 0 {
		return nil, &InvariantError{Message: "deduction quantity must be > 0"}
	}
	level, err := lockStockLevel(tx, stockKey{StoreId: storeId, VariantId: variantId}, false)
	if err != nil {
		return nil, err
	}
	if level == nil {
		return nil, &StockError{StoreId: storeId, VariantId: variantId, Requested: qty}
	}
	if err := deductLockedStock(tx, level, qty, 0); err != nil {
		return nil, err
	}
	return level, nil
}

// seedStockLevels inserts zero rows for every (store, variant) pair, skipping existing ones.
func seedStockLevels(tx *gorm.DB, storeIds []int, variantIds []int, threshold int) error {
	if len(storeIds) == 0 || len(variantIds) == 0 {
		return nil
	}
	rows := make([]StockLevel, 0, len(storeIds)*len(variantIds))
	for _, storeId := range storeIds {
		for _, variantId := range variantIds {
			rows = append(rows, StockLevel{StoreId: storeId, VariantId: variantId, LowStockThreshold: threshold})
		}
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&rows, 200).Error
}

// GetStockLevel reads without locking. An absent row reads as quantity 0.
func GetStockLevel(ctx context.Context, storeId int, variantId int) (*StockLevel, error) {
	db := config.GetDB()
	var levels []StockLevel
	if err := db.WithContext(ctx).Where("store_id = ? AND variant_id = ?", storeId, variantId).
		Limit(1).Find(&levels).Error; err != nil {
		return nil, err
	}
	if len(levels) == 0 {
		return &StockLevel{StoreId: storeId, VariantId: variantId}, nil
	}
	return &levels[0], nil
}

func stockCacheKey(variantId int) string {
	return fmt.Sprintf("StockLevels:Variant:%d", variantId)
}

// GetVariantStockLevels lists a variant's rows across stores, served from redis when cached.
// The cache is a read view only; mutations never consult it.
func GetVariantStockLevels(ctx context.Context, variantId int) ([]StockLevel, error) {
	var cached []StockLevel
	if ok, err := config.GetRedisObject(ctx, stockCacheKey(variantId), &cached); err == nil && ok {
		return cached, nil
	}

	db := config.GetDB()
	var levels []StockLevel
	if err := db.WithContext(ctx).Where("variant_id = ?", variantId).Order("store_id").Find(&levels).Error; err != nil {
		return nil, err
	}
	if err := config.SetRedisObject(ctx, stockCacheKey(variantId), levels, config.StockCacheTTL()); err != nil {
		config.LogError(config.GetLogger(), "stockLevel.go", "GetVariantStockLevels", "caching stock levels", variantId, err)
	}
	return levels, nil
}

// invalidateStockCache must be called after commit for every variant whose rows changed.
func invalidateStockCache(ctx context.Context, variantIds ...int) {
	ids := utils.UniqueSlice(variantIds)
	if len(ids) == 0 {
		return
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, stockCacheKey(id))
	}
	if err := config.RemoveRedisKey(ctx, keys...); err != nil {
		config.LogError(config.GetLogger(), "stockLevel.go", "invalidateStockCache", "removing cache keys", ids, err)
	}
}

// SetLowStockThreshold updates the alert threshold of one ledger row, creating the row if absent.
func SetLowStockThreshold(ctx context.Context, storeId int, variantId int, threshold int) (*StockLevel, error) {
	if threshold < 0 {
		return nil, &InvariantError{Message: "low stock threshold must be >= 0"}
	}
	db := config.GetDB()
	var level *StockLevel
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureStoresExist(tx, []int{storeId}); err != nil {
			return err
		}
		if err := ensureVariantsExist(tx, []int{variantId}); err != nil {
			return err
		}
		var err error
		level, err = lockStockLevel(tx, stockKey{StoreId: storeId, VariantId: variantId}, true)
		if err != nil {
			return err
		}
		if err := tx.Model(&StockLevel{}).Where("id = ?", level.ID).
			Update("low_stock_threshold", threshold).Error; err != nil {
			return err
		}
		level.LowStockThreshold = threshold
		return nil
	})
	if err != nil {
		return nil, utils.TranslateDBError(err)
	}
	invalidateStockCache(ctx, variantId)
	return level, nil
}
