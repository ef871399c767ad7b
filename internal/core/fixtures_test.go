package core_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/restoimport/internal/core"
	_ "github.com/JonMunkholm/restoimport/internal/core/entities"
)

const usersCSV = `temp_id,nombre,correo,telefono,direccion_nombre,longitud,latitud,municipio,fecha_registro
U1,Ana López,ana@example.com,+502 5555 0000,Calle Real,-90.5,14.6,Mixco,2024-01-15
U2,Luis Pérez,LUIS@example.com,,6a Avenida,-90.4,14.5,Villa Nueva,2024-02-01
`

const restaurantsCSV = `temp_id,nombre,longitud,latitud,departamento,ciudad,categoria,calificacion_promedio,horario
R1,Casa Maya,-90.51,14.62,Guatemala,Guatemala,Típica,4.5,08:00-20:00
R2,Pizza Roma,-90.52,14.63,Guatemala,Mixco,Italiana,,
`

const menuItemsCSV = `temp_id,nombre,descripcion,ingredientes,precio,disponible,categoria,restaurante_id
M1,Pepián,Guiso tradicional,"pollo, tomate, miltomate",85.00,true,Plato fuerte,R1
M2,Pizza clásica,,"queso, tomate",60,false,Pizza,R2
M3,Atol de elote,Bebida caliente,elote,10,true,Bebida,R1
`

const ordersCSV = `temp_id,usuario_id,restaurante_id,fecha,estado,items,total
O1,U1,R1,2024-05-01,Entregado,M1:2:85.00:0.10|M3:1:10:0,163.00
O2,U2,R2,2024-05-02,pending,M2:1:60:0,60
`

const reviewsCSV = `temp_id,reviewed_id,type,usuario_id,comentario,calificacion,fecha
V1,O1,orden,U1,Muy rico,5,2024-05-03
V2,R2,restaurant,U2,,4,2024-05-04
`

// writeDataset writes a consistent data set into a temp dir. Entries of
// replace substitute a file's content; an empty string omits the file.
func writeDataset(t *testing.T, replace map[string]string) string {
	t.Helper()

	files := map[string]string{
		"usuarios.csv":     usersCSV,
		"restaurantes.csv": restaurantsCSV,
		"menu_items.csv":   menuItemsCSV,
		"ordenes.csv":      ordersCSV,
		"resenas.csv":      reviewsCSV,
	}
	for name, body := range replace {
		files[name] = body
	}

	dir := t.TempDir()
	for name, body := range files {
		if body == "" {
			continue
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func defaultPlan(t *testing.T) []core.EntityDefinition {
	t.Helper()
	plan, err := core.Plan(nil)
	require.NoError(t, err)
	return plan
}

func declaredIndexes(plan []core.EntityDefinition) int {
	n := 0
	for _, def := range plan {
		n += len(def.Indexes)
	}
	return n
}

// progressLog collects progress events from pipeline goroutines.
type progressLog struct {
	mu     sync.Mutex
	events []core.Progress
}

func (l *progressLog) record(p core.Progress) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, p)
}

func (l *progressLog) phases(phase core.Phase) []core.Progress {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []core.Progress
	for _, e := range l.events {
		if e.Phase == phase {
			out = append(out, e)
		}
	}
	return out
}
