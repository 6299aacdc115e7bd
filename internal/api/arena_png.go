package api

import (
	"hash/fnv"
	"image/color"
	"log"
	"net/http"

	"github.com/fogleman/gg"

	"arena-sim/internal/game"
)

const (
	plotSize       = 512
	plotHalfExtent = game.ArenaHalfExtent * 1.2 // world units shown either side of the origin
	plotGridStep   = 5.0
)

// teamPalette colors entities by team; unteamed entities are white
var teamPalette = []color.RGBA{
	{0x4d, 0x99, 0xff, 0xff},
	{0xff, 0x57, 0x22, 0xff},
	{0x66, 0xff, 0x66, 0xff},
	{0xff, 0xd7, 0x00, 0xff},
	{0xe0, 0x40, 0xfb, 0xff},
}

func teamColor(team string) color.Color {
	if team == "" {
		return color.White
	}
	h := fnv.New32a()
	h.Write([]byte(team))
	return teamPalette[h.Sum32()%uint32(len(teamPalette))]
}

// toPixel maps an XZ world position into plot coordinates (Z grows downward)
func toPixel(p game.Vec3) (float64, float64) {
	scale := plotSize / (2 * plotHalfExtent)
	return (p.X + plotHalfExtent) * scale, (p.Z + plotHalfExtent) * scale
}

// RenderArena draws a top-down plot of a snapshot
func RenderArena(snap *game.GameSnapshot) *gg.Context {
	dc := gg.NewContext(plotSize, plotSize)

	// Background
	dc.SetColor(color.RGBA{12, 12, 28, 255})
	dc.Clear()

	// Grid
	dc.SetColor(color.RGBA{30, 30, 45, 255})
	dc.SetLineWidth(1)
	for v := -plotHalfExtent; v <= plotHalfExtent; v += plotGridStep {
		x, _ := toPixel(game.Vec3{X: v})
		_, y := toPixel(game.Vec3{Z: v})
		dc.DrawLine(x, 0, x, plotSize)
		dc.DrawLine(0, y, plotSize, y)
	}
	dc.Stroke()

	// Spawn bounds
	x0, y0 := toPixel(game.Vec3{X: -game.ArenaHalfExtent, Z: -game.ArenaHalfExtent})
	x1, y1 := toPixel(game.Vec3{X: game.ArenaHalfExtent, Z: game.ArenaHalfExtent})
	dc.SetColor(color.RGBA{80, 80, 110, 255})
	dc.DrawRectangle(x0, y0, x1-x0, y1-y0)
	dc.Stroke()

	scale := plotSize / (2 * plotHalfExtent)

	for _, e := range snap.Entities {
		x, y := toPixel(e.Transform.Position)
		r := game.EntityRadius * scale

		if e.State != game.StateAlive {
			dc.SetColor(color.RGBA{90, 90, 90, 255})
			dc.DrawCircle(x, y, r)
			dc.Fill()
			continue
		}

		if e.Shield.Active {
			dc.SetHexColor(game.ShieldTypes[e.Shield.Type].Color)
			dc.SetLineWidth(2)
			dc.DrawCircle(x, y, r+3)
			dc.Stroke()
		}

		dc.SetColor(teamColor(e.Team))
		dc.DrawCircle(x, y, r)
		dc.Fill()

		// Facing
		fx, fy := toPixel(e.Transform.Position.Add(e.Transform.Forward.Scale(game.EntityRadius * 3)))
		dc.SetLineWidth(1)
		dc.DrawLine(x, y, fx, fy)
		dc.Stroke()

		// Health bar
		dc.SetColor(color.RGBA{60, 0, 0, 255})
		dc.DrawRectangle(x-r, y-r-5, 2*r, 3)
		dc.Fill()
		dc.SetColor(color.RGBA{0, 220, 90, 255})
		dc.DrawRectangle(x-r, y-r-5, 2*r*e.HUD.Health, 3)
		dc.Fill()

		dc.SetColor(color.White)
		dc.DrawStringAnchored(e.Name, x, y+r+10, 0.5, 0.5)
	}

	for _, p := range snap.Projectiles {
		x, y := toPixel(p.Position)
		dc.SetHexColor(p.Color)
		dc.DrawCircle(x, y, p.Radius*scale+1)
		dc.Fill()
	}

	return dc
}

func (h *routerHandlers) handleArenaPNG(w http.ResponseWriter, r *http.Request) {
	dc := RenderArena(h.engine.GetSnapshot())

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := dc.EncodePNG(w); err != nil {
		log.Printf("⚠️ Arena plot encode failed: %v", err)
	}
}
