package entities

import "github.com/JonMunkholm/restoimport/internal/core"

func init() {
	registerReviews()
}

// reviewedKinds resolves reviewed_id by the review's type. Keys match
// case-insensitively.
var reviewedKinds = core.PolymorphicRef{
	Discriminator: "type",
	Kinds: map[string]core.Kind{
		"orden":       core.KindOrders,
		"order":       core.KindOrders,
		"restaurante": core.KindRestaurants,
		"restaurant":  core.KindRestaurants,
	},
}

func registerReviews() {
	core.Register(core.EntityDefinition{
		Kind:       core.KindReviews,
		Label:      "Reseñas",
		Order:      orderReviews,
		File:       "resenas.csv",
		Collection: "resenas",
		IDColumn:   "temp_id",
		Fields: []core.FieldSpec{
			{Column: "reviewed_id", Type: core.FieldRef, Ref: reviewedKinds},
			{Column: "type", Type: core.FieldEnum, EnumValues: []string{"orden", "restaurante"}, Normalizer: NormalizeReviewType},
			{Column: "usuario_id", Type: core.FieldRef, Ref: core.PlainRef{Target: core.KindUsers}},
			{Column: "comentario", Type: core.FieldText, AllowEmpty: true},
			{Column: "calificacion", Type: core.FieldInt, Bounds: &core.Bounds{Min: 1, Max: 5}},
			{Column: "fecha", Type: core.FieldDate},
		},
		Indexes: []core.IndexSpec{
			{Name: "reviewed_type", Keys: []core.IndexKey{
				{Field: "reviewed_id", Order: core.Ascending},
				{Field: "type", Order: core.Ascending},
			}},
			{Name: "usuario_fecha", Keys: []core.IndexKey{
				{Field: "usuario_id", Order: core.Ascending},
				{Field: "fecha", Order: core.Descending},
			}},
			{Name: "calificacion", Keys: []core.IndexKey{{Field: "calificacion", Order: core.Descending}}},
		},
	})
}
