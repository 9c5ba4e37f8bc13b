package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tsheringp/pharmstock-backend/pkg/db/models"
	"github.com/tsheringp/pharmstock-backend/pkg/enums"
	pkgerrors "github.com/tsheringp/pharmstock-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockMetrics interface {
	IncStockMutation(operation, outcome string)
}

// Service defines the seller-facing order workflow.
type Service interface {
	ListOrders(ctx context.Context, input ListOrdersInput) ([]models.Order, error)
	UpdateItem(ctx context.Context, input UpdateItemInput) (*models.OrderItem, error)
	ApproveAll(ctx context.Context, input ApproveAllInput) (*ApproveAllResult, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	metrics stockMetrics
}

// ListOrdersInput filters the seller's order listing.
type ListOrdersInput struct {
	ActorID uuid.UUID
	Status  *enums.OrderItemStatus
}

// UpdateItemInput carries a partial update for a single order item. Quantity
// and Status are both optional; absent fields are left untouched.
type UpdateItemInput struct {
	ItemID   uuid.UUID
	ActorID  uuid.UUID
	Quantity *int
	Status   *enums.OrderItemStatus
}

// ApproveAllInput identifies the order whose pending items should be approved.
type ApproveAllInput struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
}

// InsufficientStockItem describes one pending item that could not be approved.
type InsufficientStockItem struct {
	DrugName  string `json:"drug_name"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	Reason    string `json:"reason"`
}

// ApproveAllResult summarizes a bulk approval pass.
type ApproveAllResult struct {
	ApprovedCount          int                     `json:"approvedCount"`
	InsufficientStockItems []InsufficientStockItem `json:"insufficientStockItems"`
	TotalItems             int                     `json:"totalItems"`
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, tx txRunner, metrics stockMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, metrics: metrics}, nil
}

func (s *service) ListOrders(ctx context.Context, input ListOrdersInput) ([]models.Order, error) {
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor")
	}
	orders, err := s.repo.ListOrdersForSeller(ctx, input.ActorID, input.Status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list seller orders")
	}
	return orders, nil
}

func (s *service) UpdateItem(ctx context.Context, input UpdateItemInput) (*models.OrderItem, error) {
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor")
	}
	if input.Quantity == nil && input.Status == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update")
	}
	if input.Quantity != nil && *input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be at least 1")
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order item status")
	}

	var updated *models.OrderItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		item, err := repo.FindItem(ctx, input.ItemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order item")
		}
		if err := s.authorizeItem(ctx, repo, item, input.ActorID); err != nil {
			return err
		}

		updates := map[string]any{}
		if input.Quantity != nil {
			updates["quantity"] = *input.Quantity
		}

		if input.Status != nil && *input.Status != item.Status {
			if err := s.applyTransition(ctx, repo, item, *input.Status, input.Quantity, updates); err != nil {
				return err
			}
		}

		if len(updates) > 0 {
			if err := repo.UpdateItem(ctx, item.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order item")
			}
		}

		updated, err = repo.FindItem(ctx, item.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// applyTransition enforces the item state machine and couples stock movement
// to the status change so both land in the same transaction.
func (s *service) applyTransition(ctx context.Context, repo Repository, item *models.OrderItem, next enums.OrderItemStatus, quantity *int, updates map[string]any) error {
	if item.Status.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("item is already %s", item.Status)).
			WithDetails(map[string]any{"current_status": item.Status})
	}

	switch {
	case item.Status == enums.OrderItemStatusPending && next == enums.OrderItemStatusApproved:
		qty := item.Quantity
		if quantity != nil {
			qty = *quantity
		}
		if err := s.approveItem(ctx, repo, item, qty); err != nil {
			return err
		}
	case item.Status == enums.OrderItemStatusPending && next == enums.OrderItemStatusRejected:
		// No stock was taken yet, nothing to release.
	case item.Status == enums.OrderItemStatusApproved && next == enums.OrderItemStatusRejected:
		// Restore the quantity that was deducted at approval time, not any
		// new quantity carried on this request.
		if item.DrugID != nil {
			if err := repo.RestoreStock(ctx, *item.DrugID, item.Quantity); err != nil {
				s.countStock("restore", "error")
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restore stock")
			}
			s.countStock("restore", "ok")
		}
	case item.Status == enums.OrderItemStatusApproved && next == enums.OrderItemStatusShipped:
		// Stock already moved at approval.
	default:
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move item from %s to %s", item.Status, next)).
			WithDetails(map[string]any{"current_status": item.Status, "requested_status": next})
	}

	updates["status"] = next
	return nil
}

// approveItem deducts stock with a conditional update so concurrent approvals
// cannot drive stock negative.
func (s *service) approveItem(ctx context.Context, repo Repository, item *models.OrderItem, qty int) error {
	if item.DrugID == nil {
		return nil
	}
	ok, err := repo.DecrementStock(ctx, *item.DrugID, qty)
	if err != nil {
		s.countStock("decrement", "error")
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deduct stock")
	}
	if !ok {
		s.countStock("decrement", "insufficient")
		available := 0
		if drug, derr := repo.FindDrug(ctx, *item.DrugID); derr == nil {
			available = drug.Stock
		}
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(map[string]any{
				"drug_name": item.Name,
				"requested": qty,
				"available": available,
			})
	}
	s.countStock("decrement", "ok")
	return nil
}

func (s *service) ApproveAll(ctx context.Context, input ApproveAllInput) (*ApproveAllResult, error) {
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor")
	}

	result := &ApproveAllResult{InsufficientStockItems: []InsufficientStockItem{}}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindOrder(ctx, input.OrderID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}

		items, err := repo.LockPendingItems(ctx, input.OrderID, input.ActorID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock pending items")
		}
		result.TotalItems = len(items)

		for i := range items {
			item := &items[i]
			if skipped := s.approveLocked(ctx, repo, item); skipped != nil {
				result.InsufficientStockItems = append(result.InsufficientStockItems, *skipped)
				continue
			}
			result.ApprovedCount++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// approveLocked attempts the approval of one already-locked pending item. A
// non-nil return means the item was skipped and reports why; approval errors
// on one item never abort the rest of the batch.
func (s *service) approveLocked(ctx context.Context, repo Repository, item *models.OrderItem) *InsufficientStockItem {
	if item.DrugID != nil {
		ok, err := repo.DecrementStock(ctx, *item.DrugID, item.Quantity)
		if err != nil {
			s.countStock("decrement", "error")
			return &InsufficientStockItem{
				DrugName:  item.Name,
				Requested: item.Quantity,
				Reason:    "Database error during approval",
			}
		}
		if !ok {
			s.countStock("decrement", "insufficient")
			available := 0
			if drug, derr := repo.FindDrug(ctx, *item.DrugID); derr == nil {
				available = drug.Stock
			}
			return &InsufficientStockItem{
				DrugName:  item.Name,
				Requested: item.Quantity,
				Available: available,
				Reason:    "Insufficient stock",
			}
		}
		s.countStock("decrement", "ok")
	}

	if err := repo.UpdateItem(ctx, item.ID, map[string]any{"status": enums.OrderItemStatusApproved}); err != nil {
		if item.DrugID != nil {
			// Put the stock back so the skipped item leaves no trace.
			if rerr := repo.RestoreStock(ctx, *item.DrugID, item.Quantity); rerr != nil {
				s.countStock("restore", "error")
			}
		}
		return &InsufficientStockItem{
			DrugName:  item.Name,
			Requested: item.Quantity,
			Reason:    "Database error during approval",
		}
	}
	return nil
}

// authorizeItem restricts item mutations to the item's seller or the order's
// recipient; anyone else sees the item as missing.
func (s *service) authorizeItem(ctx context.Context, repo Repository, item *models.OrderItem, actorID uuid.UUID) error {
	if item.SellerID == actorID {
		return nil
	}
	order, err := repo.FindOrder(ctx, item.OrderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load parent order")
	}
	if order.RecipientID != nil && *order.RecipientID == actorID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
}

func (s *service) countStock(operation, outcome string) {
	if s.metrics != nil {
		s.metrics.IncStockMutation(operation, outcome)
	}
}
