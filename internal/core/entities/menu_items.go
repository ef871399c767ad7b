package entities

import "github.com/JonMunkholm/restoimport/internal/core"

func init() {
	registerMenuItems()
}

func registerMenuItems() {
	core.Register(core.EntityDefinition{
		Kind:       core.KindMenuItems,
		Label:      "Menú",
		Order:      orderMenuItems,
		File:       "menu_items.csv",
		Collection: "menu_items",
		IDColumn:   "temp_id",
		Fields: []core.FieldSpec{
			{Column: "nombre", Type: core.FieldText},
			{Column: "descripcion", Type: core.FieldText, AllowEmpty: true},
			{Column: "ingredientes", Type: core.FieldList},
			{Column: "precio", Type: core.FieldFloat, Bounds: &core.Bounds{Min: 0, Max: 1e9}},
			{Column: "disponible", Type: core.FieldBool},
			{Column: "categoria", Type: core.FieldText, AllowEmpty: true},
			{Column: "restaurante_id", Type: core.FieldRef, Ref: core.PlainRef{Target: core.KindRestaurants}},
		},
		Indexes: []core.IndexSpec{
			{Name: "restaurante_categoria", Keys: []core.IndexKey{
				{Field: "restaurante_id", Order: core.Ascending},
				{Field: "categoria", Order: core.Ascending},
			}},
			{Name: "disponible", Keys: []core.IndexKey{{Field: "disponible", Order: core.Ascending}}},
			{Name: "descripcion_text", Keys: []core.IndexKey{{Field: "descripcion", Order: core.Text}}},
		},
	})
}
