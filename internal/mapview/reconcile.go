package mapview

import "github.com/globo/viewer/internal/domain"

// Props are the controller's rendering inputs. Documents are compared
// by reference.
type Props struct {
	Input  *domain.Document
	Result *domain.Document
}

// Reconcile lists the layer operations that take the map from prev to
// next. Every overlay prev may have attached is removed before anything
// is created, so a role never has two overlays at once.
func Reconcile(prev, next Props) []domain.LayerOp {
	ops := make([]domain.LayerOp, 0, 4)
	if prev.Result != nil {
		ops = append(ops, domain.Remove(domain.RoleResult))
	}
	if prev.Input != nil {
		ops = append(ops, domain.Remove(domain.RoleBase))
	}
	if next.Input != nil {
		ops = append(ops, domain.Create(domain.RoleBase, next.Input))
	}
	if next.Result != nil {
		ops = append(ops, domain.Create(domain.RoleResult, next.Result))
	}
	return ops
}

// ShouldUpdate gates re-rendering on a new result reference
func ShouldUpdate(prev, next Props) bool {
	return prev.Result != next.Result
}
