package entities

import "github.com/JonMunkholm/restoimport/internal/core"

func init() {
	registerOrders()
}

// OrderStates lists the accepted estado values, English and the generator's
// Spanish spellings.
var OrderStates = []string{
	"Pending", "Preparing", "Delivered", "Cancelled",
	"Pendiente", "Preparando", "Entregado", "Cancelado",
}

// lineItem describes one packed order item: item_id:cantidad:precio_unitario:descuento.
var lineItem = core.PackedRef{
	ItemSep:  "|",
	FieldSep: ":",
	Items: []core.FieldSpec{
		{Column: "item_id", Type: core.FieldRef, Ref: core.PlainRef{Target: core.KindMenuItems}},
		{Column: "cantidad", Type: core.FieldInt, Bounds: &core.Bounds{Min: 1, Max: 1e6}},
		{Column: "precio_unitario", Type: core.FieldFloat, Bounds: &core.Bounds{Min: 0, Max: 1e9}},
		{Column: "descuento", Type: core.FieldFloat, Bounds: &core.Bounds{Min: 0, Max: 1}},
	},
}

func registerOrders() {
	core.Register(core.EntityDefinition{
		Kind:       core.KindOrders,
		Label:      "Órdenes",
		Order:      orderOrders,
		File:       "ordenes.csv",
		Collection: "ordenes",
		IDColumn:   "temp_id",
		Fields: []core.FieldSpec{
			{Column: "usuario_id", Type: core.FieldRef, Ref: core.PlainRef{Target: core.KindUsers}},
			{Column: "restaurante_id", Type: core.FieldRef, Ref: core.PlainRef{Target: core.KindRestaurants}},
			{Column: "fecha", Type: core.FieldDate},
			{Column: "estado", Type: core.FieldEnum, EnumValues: OrderStates},
			{Column: "items", Type: core.FieldRef, Ref: lineItem},
			{Column: "total", Type: core.FieldFloat, Bounds: &core.Bounds{Min: 0, Max: 1e12}},
		},
		Indexes: []core.IndexSpec{
			{Name: "estado", Keys: []core.IndexKey{{Field: "estado", Order: core.Ascending}}},
			{Name: "usuario_fecha", Keys: []core.IndexKey{
				{Field: "usuario_id", Order: core.Ascending},
				{Field: "fecha", Order: core.Descending},
			}},
			{Name: "restaurante_fecha", Keys: []core.IndexKey{
				{Field: "restaurante_id", Order: core.Ascending},
				{Field: "fecha", Order: core.Descending},
			}},
			// Multikey: items is an array of sub-documents
			{Name: "items_item_id", Keys: []core.IndexKey{{Field: "items.item_id", Order: core.Ascending}}},
		},
	})
}
