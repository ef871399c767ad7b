package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JonMunkholm/restoimport/internal/core"
)

func definition(t *testing.T, kind core.Kind) core.EntityDefinition {
	t.Helper()
	def, ok := core.Get(kind)
	require.True(t, ok, "kind %s not registered", kind)
	return def
}

// committed returns an allocator with the given transient ids committed.
func committed(t *testing.T, ids map[core.Kind][]string) (*core.Allocator, map[string]primitive.ObjectID) {
	t.Helper()
	alloc := core.NewAllocator()
	out := make(map[string]primitive.ObjectID)
	for kind, transient := range ids {
		for _, tid := range transient {
			id, err := alloc.Allocate(kind, tid)
			require.NoError(t, err)
			out[tid] = id
		}
		alloc.Commit(kind)
	}
	return alloc, out
}

func lookup(t *testing.T, doc bson.D, path ...string) any {
	t.Helper()
	var cur any = doc
	for _, key := range path {
		d, ok := cur.(bson.D)
		require.True(t, ok, "%v is not a document at %q", cur, key)
		cur = d.Map()[key]
	}
	return cur
}

func TestPlan_StageOrder(t *testing.T) {
	plan, err := core.Plan(nil)
	require.NoError(t, err)

	kinds := make([]core.Kind, len(plan))
	for i, def := range plan {
		kinds[i] = def.Kind
	}
	assert.Equal(t, []core.Kind{
		core.KindUsers, core.KindRestaurants, core.KindMenuItems, core.KindOrders, core.KindReviews,
	}, kinds)
}

func TestPlan_Overrides(t *testing.T) {
	plan, err := core.Plan(map[core.Kind]core.Source{
		core.KindOrders: {File: "orders-2024.csv", Collection: "orders"},
	})
	require.NoError(t, err)

	assert.Equal(t, "orders-2024.csv", plan[3].File)
	assert.Equal(t, "orders", plan[3].Collection)
	// Defaults kept elsewhere and the registry is untouched
	assert.Equal(t, "usuarios", plan[0].Collection)
	assert.Equal(t, "ordenes", definition(t, core.KindOrders).Collection)
}

func TestPlan_RejectsSharedCollection(t *testing.T) {
	_, err := core.Plan(map[core.Kind]core.Source{
		core.KindReviews: {Collection: "usuarios"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usuarios")
}

func TestUsers_NestedAddress(t *testing.T) {
	def := definition(t, core.KindUsers)
	assert.Equal(t, []string{
		"temp_id", "nombre", "correo", "telefono", "direccion_nombre",
		"longitud", "latitud", "municipio", "fecha_registro",
	}, def.Columns())

	rw := core.NewRewriter(def, core.NewAllocator())
	id := primitive.NewObjectID()
	doc, err := rw.Rewrite(core.Record{Row: 1, Line: 2, Fields: map[string]string{
		"temp_id":          "U1",
		"nombre":           "Ana López",
		"correo":           "Ana@Example.com",
		"telefono":         "+502 5555 0000",
		"direccion_nombre": "Calle Real",
		"longitud":         "-90.5",
		"latitud":          "14.6",
		"municipio":        "Mixco",
		"fecha_registro":   "2024-01-15",
	}}, id)
	require.NoError(t, err)

	assert.Equal(t, id, lookup(t, doc, "_id"))
	assert.Equal(t, "ana@example.com", lookup(t, doc, "correo"))
	assert.Equal(t, "Calle Real", lookup(t, doc, "direccion", "nombre"))
	assert.Equal(t, -90.5, lookup(t, doc, "direccion", "ubicacion", "longitud"))
	assert.Equal(t, 14.6, lookup(t, doc, "direccion", "ubicacion", "latitud"))
	assert.Equal(t, "Mixco", lookup(t, doc, "direccion", "municipio"))
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), lookup(t, doc, "fecha_registro"))
	assert.NotContains(t, doc.Map(), "temp_id")
}

func TestOrders_LineItems(t *testing.T) {
	alloc, ids := committed(t, map[core.Kind][]string{
		core.KindUsers:       {"U1"},
		core.KindRestaurants: {"R1"},
		core.KindMenuItems:   {"M1", "M2"},
	})
	rw := core.NewRewriter(definition(t, core.KindOrders), alloc)

	doc, err := rw.Rewrite(core.Record{Row: 1, Line: 2, Fields: map[string]string{
		"temp_id":        "O1",
		"usuario_id":     "U1",
		"restaurante_id": "R1",
		"fecha":          "2024-05-01",
		"estado":         "Entregado",
		"items":          "M1:2:99.50:0.10|M2:1:20.00:0.00",
		"total":          "199.10",
	}}, primitive.NewObjectID())
	require.NoError(t, err)

	assert.Equal(t, ids["U1"], lookup(t, doc, "usuario_id"))
	assert.Equal(t, ids["R1"], lookup(t, doc, "restaurante_id"))
	assert.Equal(t, "Entregado", lookup(t, doc, "estado"))

	items, ok := lookup(t, doc, "items").(bson.A)
	require.True(t, ok)
	require.Len(t, items, 2)
	assert.Equal(t, bson.D{
		{Key: "item_id", Value: ids["M1"]},
		{Key: "cantidad", Value: 2},
		{Key: "precio_unitario", Value: 99.5},
		{Key: "descuento", Value: 0.1},
	}, items[0])
	assert.Equal(t, ids["M2"], items[1].(bson.D).Map()["item_id"])
}

func TestOrders_EnglishState(t *testing.T) {
	alloc, _ := committed(t, map[core.Kind][]string{
		core.KindUsers:       {"U1"},
		core.KindRestaurants: {"R1"},
		core.KindMenuItems:   {"M1"},
	})
	rw := core.NewRewriter(definition(t, core.KindOrders), alloc)

	fields := map[string]string{
		"temp_id": "O1", "usuario_id": "U1", "restaurante_id": "R1", "fecha": "2024-05-01",
		"items": "M1:1:10:0", "total": "10",
	}

	// Case variants are stored in their canonical spelling
	for in, want := range map[string]string{"delivered": "Delivered", "ENTREGADO": "Entregado", "pendiente": "Pendiente"} {
		fields["estado"] = in
		doc, err := rw.Rewrite(core.Record{Row: 1, Fields: fields}, primitive.NewObjectID())
		require.NoError(t, err, in)
		assert.Equal(t, want, lookup(t, doc, "estado"), in)
	}

	fields["estado"] = "Lost"
	_, err := rw.Rewrite(core.Record{Row: 1, Fields: fields}, primitive.NewObjectID())
	var malformed *core.MalformedRecordError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "estado", malformed.Column)
}

func TestReviews_TypeSelectsTarget(t *testing.T) {
	// Only type decides which mapping reviewed_id is resolved against
	alloc, ids := committed(t, map[core.Kind][]string{
		core.KindUsers:       {"U1"},
		core.KindRestaurants: {"X1"},
		core.KindOrders:      {"O1"},
	})
	rw := core.NewRewriter(definition(t, core.KindReviews), alloc)

	tests := []struct {
		name     string
		typ      string
		reviewed string
		wantType string
		wantID   primitive.ObjectID
	}{
		{"spanish order", "orden", "O1", "orden", ids["O1"]},
		{"english order", "Order", "O1", "orden", ids["O1"]},
		{"spanish restaurant", "RESTAURANTE", "X1", "restaurante", ids["X1"]},
		{"english restaurant", "restaurant", "X1", "restaurante", ids["X1"]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := rw.Rewrite(core.Record{Row: 1, Fields: map[string]string{
				"temp_id": "V1", "reviewed_id": tt.reviewed, "type": tt.typ, "usuario_id": "U1",
				"comentario": "Muy bueno", "calificacion": "5", "fecha": "2024-06-01",
			}}, primitive.NewObjectID())
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, lookup(t, doc, "reviewed_id"))
			assert.Equal(t, tt.wantType, lookup(t, doc, "type"))
			assert.Equal(t, 5, lookup(t, doc, "calificacion"))
		})
	}
}

func TestReviews_WrongTypeDoesNotFallBack(t *testing.T) {
	alloc, _ := committed(t, map[core.Kind][]string{
		core.KindUsers:       {"U1"},
		core.KindRestaurants: {"R1"},
	})
	rw := core.NewRewriter(definition(t, core.KindReviews), alloc)

	// R1 exists as a restaurant, but the review says it is an order
	_, err := rw.Rewrite(core.Record{Row: 4, Fields: map[string]string{
		"temp_id": "V1", "reviewed_id": "R1", "type": "orden", "usuario_id": "U1",
		"comentario": "", "calificacion": "3", "fecha": "2024-06-01",
	}}, primitive.NewObjectID())

	var unresolved *core.UnresolvedReferenceError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, core.KindOrders, unresolved.Target)
	assert.Equal(t, "reviewed_id", unresolved.Column)
	assert.Equal(t, 4, unresolved.Row)
}

func TestReviews_RatingOutOfRange(t *testing.T) {
	alloc, _ := committed(t, map[core.Kind][]string{
		core.KindUsers:       {"U1"},
		core.KindRestaurants: {"R1"},
	})
	rw := core.NewRewriter(definition(t, core.KindReviews), alloc)

	_, err := rw.Rewrite(core.Record{Row: 1, Fields: map[string]string{
		"temp_id": "V1", "reviewed_id": "R1", "type": "restaurante", "usuario_id": "U1",
		"comentario": "", "calificacion": "6", "fecha": "2024-06-01",
	}}, primitive.NewObjectID())

	var malformed *core.MalformedRecordError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "calificacion", malformed.Column)
}

func TestNormalizeReviewType(t *testing.T) {
	tests := map[string]string{
		"orden":       "orden",
		" Order ":     "orden",
		"restaurante": "restaurante",
		"RESTAURANT":  "restaurante",
		"delivery":    "delivery",
		"":            "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeReviewType(in), "input %q", in)
	}
}

func TestMenuItems_Ingredients(t *testing.T) {
	alloc, ids := committed(t, map[core.Kind][]string{core.KindRestaurants: {"R1"}})
	rw := core.NewRewriter(definition(t, core.KindMenuItems), alloc)

	doc, err := rw.Rewrite(core.Record{Row: 1, Fields: map[string]string{
		"temp_id": "M1", "nombre": "Pepián", "descripcion": "Guiso tradicional",
		"ingredientes": "pollo, tomate, miltomate", "precio": "85.00",
		"disponible": "True", "categoria": "Plato fuerte", "restaurante_id": "R1",
	}}, primitive.NewObjectID())
	require.NoError(t, err)

	assert.Equal(t, []string{"pollo", "tomate", "miltomate"}, lookup(t, doc, "ingredientes"))
	assert.Equal(t, true, lookup(t, doc, "disponible"))
	assert.Equal(t, 85.0, lookup(t, doc, "precio"))
	assert.Equal(t, ids["R1"], lookup(t, doc, "restaurante_id"))
}
