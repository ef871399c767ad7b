package entities

import "github.com/JonMunkholm/restoimport/internal/core"

func init() {
	registerUsers()
}

func registerUsers() {
	core.Register(core.EntityDefinition{
		Kind:       core.KindUsers,
		Label:      "Usuarios",
		Order:      orderUsers,
		File:       "usuarios.csv",
		Collection: "usuarios",
		IDColumn:   "temp_id",
		Fields: []core.FieldSpec{
			{Column: "nombre", Type: core.FieldText},
			{Column: "correo", Type: core.FieldText, Normalizer: NormalizeEmail},
			{Column: "telefono", Type: core.FieldText, AllowEmpty: true},
			{Column: "direccion_nombre", Target: "direccion.nombre", Type: core.FieldText, AllowEmpty: true},
			{Column: "longitud", Target: "direccion.ubicacion.longitud", Type: core.FieldFloat, Bounds: &longitudeBounds},
			{Column: "latitud", Target: "direccion.ubicacion.latitud", Type: core.FieldFloat, Bounds: &latitudeBounds},
			{Column: "municipio", Target: "direccion.municipio", Type: core.FieldText, AllowEmpty: true},
			{Column: "fecha_registro", Type: core.FieldDate},
		},
		Indexes: []core.IndexSpec{
			{Name: "correo_unique", Keys: []core.IndexKey{{Field: "correo", Order: core.Ascending}}, Unique: true},
			{Name: "nombre_fecha_registro", Keys: []core.IndexKey{
				{Field: "nombre", Order: core.Ascending},
				{Field: "fecha_registro", Order: core.Descending},
			}},
		},
	})
}

var (
	longitudeBounds = core.Bounds{Min: -180, Max: 180}
	latitudeBounds  = core.Bounds{Min: -90, Max: 90}
)
