package schema_test

import (
	"errors"
	"testing"

	"db-shift/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func table(name string, refs ...string) *schema.TableMetadata {
	t := &schema.TableMetadata{
		Name:    name,
		Columns: []*schema.ColumnMetadata{{Name: "id", Type: "uuid", IsPrimaryKey: true}},
	}
	for _, ref := range refs {
		t.Columns = append(t.Columns, &schema.ColumnMetadata{
			Name:         ref + "_id",
			Type:         "uuid",
			Nullable:     true,
			IsForeignKey: true,
			References:   &schema.Reference{Table: ref, Column: "id"},
		})
	}
	return t
}

func names(tables []*schema.TableMetadata) []string {
	out := make([]string, len(tables))
	for i, t := range tables {
		out[i] = t.Name
	}
	return out
}

func position(order []string, name string) int {
	for i, n := range order {
		if n == name {
			return i
		}
	}
	return -1
}

func TestDependencyOrder_Simple(t *testing.T) {
	tables := []*schema.TableMetadata{
		table("order_items", "orders"),
		table("orders", "users"),
		table("users"),
	}

	sorted, err := schema.DependencyOrder(tables, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "orders", "order_items"}, names(sorted))
}

func TestDependencyOrder_ReadyTiesPreferNoForeignKeysThenName(t *testing.T) {
	tables := []*schema.TableMetadata{
		table("zeta"),
		table("beta", "zeta"),
		table("alpha"),
	}

	sorted, err := schema.DependencyOrder(tables, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta", "beta"}, names(sorted))
}

func TestDependencyOrder_PriorityAmongReady(t *testing.T) {
	tables := []*schema.TableMetadata{
		table("audit_logs"),
		table("clients", "tenants"),
		table("tenants"),
		table("users", "tenants"),
	}

	sorted, err := schema.DependencyOrder(tables, []string{"tenants", "users", "clients"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tenants", "users", "clients", "audit_logs"}, names(sorted))
}

func TestDependencyOrder_IgnoresSelfAndUnknownReferences(t *testing.T) {
	tables := []*schema.TableMetadata{
		table("categories", "categories"),
		table("products", "categories", "external_catalog"),
	}

	sorted, err := schema.DependencyOrder(tables, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"categories", "products"}, names(sorted))
}

func TestDependencyOrder_ComplexCircular(t *testing.T) {
	// A -> B -> C -> D -> E -> A, F -> E, G independent
	tables := []*schema.TableMetadata{
		table("A", "B"),
		table("B", "C"),
		table("C", "D"),
		table("D", "E"),
		table("E", "A"),
		table("F", "E"),
		table("G"),
	}

	sorted, err := schema.DependencyOrder(tables, nil)
	require.Error(t, err)

	var cycErr *schema.CycleError
	require.True(t, errors.As(err, &cycErr))
	assert.ElementsMatch(t, []string{"A", "B", "C", "D", "E", "F"}, cycErr.Tables)

	order := names(sorted)
	assert.Len(t, order, len(tables))
	assert.Equal(t, "G", order[0])
	// F only waits on E, so it follows E once the cycle is broken.
	assert.Greater(t, position(order, "F"), position(order, "E"))
}

func TestDependencyOrder_TwoTableLoopKeepsDependentsAfter(t *testing.T) {
	tables := []*schema.TableMetadata{
		table("staff", "store"),
		table("store", "staff"),
		table("rental", "staff"),
	}

	sorted, err := schema.DependencyOrder(tables, nil)
	var cycErr *schema.CycleError
	require.ErrorAs(t, err, &cycErr)

	order := names(sorted)
	assert.Len(t, order, 3)
	assert.Equal(t, "rental", order[2])
}

func TestDependencyOrder_EveryEdgeRespectedWithoutCycles(t *testing.T) {
	tables := []*schema.TableMetadata{
		table("payments", "invoices", "clients"),
		table("invoices", "clients", "tenants"),
		table("clients", "tenants"),
		table("tenants"),
		table("notes", "clients", "users"),
		table("users", "tenants"),
	}

	sorted, err := schema.DependencyOrder(tables, nil)
	require.NoError(t, err)
	order := names(sorted)
	for _, tbl := range tables {
		for _, dep := range tbl.Dependencies() {
			assert.Less(t, position(order, dep), position(order, tbl.Name), "%s must follow %s", tbl.Name, dep)
		}
	}
}
