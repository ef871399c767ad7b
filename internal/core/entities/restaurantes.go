package entities

import "github.com/JonMunkholm/restoimport/internal/core"

func init() {
	registerRestaurants()
}

func registerRestaurants() {
	core.Register(core.EntityDefinition{
		Kind:       core.KindRestaurants,
		Label:      "Restaurantes",
		Order:      orderRestaurants,
		File:       "restaurantes.csv",
		Collection: "restaurantes",
		IDColumn:   "temp_id",
		Fields: []core.FieldSpec{
			{Column: "nombre", Type: core.FieldText},
			{Column: "longitud", Target: "ubicacion.longitud", Type: core.FieldFloat, Bounds: &longitudeBounds},
			{Column: "latitud", Target: "ubicacion.latitud", Type: core.FieldFloat, Bounds: &latitudeBounds},
			{Column: "departamento", Type: core.FieldText, AllowEmpty: true},
			{Column: "ciudad", Type: core.FieldText, AllowEmpty: true},
			{Column: "categoria", Type: core.FieldText, AllowEmpty: true},
			{Column: "calificacion_promedio", Type: core.FieldFloat, AllowEmpty: true, Bounds: &core.Bounds{Min: 0, Max: 5}},
			{Column: "horario", Type: core.FieldText, AllowEmpty: true},
		},
		Indexes: []core.IndexSpec{
			{Name: "categoria", Keys: []core.IndexKey{{Field: "categoria", Order: core.Ascending}}},
			{Name: "nombre_ciudad_text", Keys: []core.IndexKey{
				{Field: "nombre", Order: core.Text},
				{Field: "ciudad", Order: core.Text},
			}},
			{Name: "ciudad_calificacion", Keys: []core.IndexKey{
				{Field: "ciudad", Order: core.Ascending},
				{Field: "calificacion_promedio", Order: core.Descending},
			}},
		},
	})
}
