package terrain

import (
	"fmt"
	"io"
	"log"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// TileStore persists tile blobs in their text wire format, keyed by tile id.
// Put overwrites; Get reports ok=false for an id that was never written.
type TileStore interface {
	Put(id uint64, data string) error
	Get(id uint64) (data string, ok bool, err error)
}

// MapConfig carries the tunables of a SparseTileMap.
type MapConfig struct {
	// TileSize is world meters per tile edge.
	TileSize float64
	// ParticleSpacing is the seeding grid spacing in meters.
	ParticleSpacing float64
	// ParticleRadius is the seeded granule radius.
	ParticleRadius float64
	// SeedDepth places seeded particles this far beneath the sampled surface.
	SeedDepth float64
	// KeepMargin scales the load window into the keep window. Tiles between
	// the two stay resident, giving hysteresis against load/evict thrash.
	KeepMargin float64
	// MaxTilesPerUpdate caps how many missing tiles one Update call
	// materializes, bounding the map-lock critical section. Remaining tiles
	// are picked up by later calls.
	MaxTilesPerUpdate int
}

// DefaultMapConfig returns the stock tuning: 1 m tiles, 0.1 m spacing,
// 0.02 m granules seeded 0.2 m deep.
func DefaultMapConfig() MapConfig {
	return MapConfig{
		TileSize:          1.0,
		ParticleSpacing:   0.1,
		ParticleRadius:    DefaultParticleRadius,
		SeedDepth:         0.2,
		KeepMargin:        1.5,
		MaxTilesPerUpdate: 64,
	}
}

// SparseTileMap is the spatial index over DenseTiles. Tiles materialize
// lazily on first reference and are evicted as the tracked position moves
// away.
//
// Two independent mutexes guard its shared state: mu protects the live tile
// table, the eviction buffer and the in-flight save set, posMu protects the
// pending position posted by the simulation tick. They are never held at the
// same time, so the foreground tick never blocks on tile I/O when posting a
// position.
type SparseTileMap struct {
	mu    sync.Mutex
	tiles map[uint64]*DenseTile
	evict map[uint64]*DenseTile
	// saving holds tiles drained from evict whose store write has not
	// completed yet. Materialization resurrects from here so a query racing
	// SaveMap never reseeds a tile that still exists in memory.
	saving map[uint64]*DenseTile

	posMu      sync.Mutex
	pending    r3.Vec
	hasPending bool

	cfg    MapConfig
	tile0  r3.Vec
	extent r3.Vec
	hf     HeightField
	store  TileStore
	logger *log.Logger
}

// NewSparseTileMap returns an empty map. Call InitializeMap before any tile
// operation. Zero or missing config fields fall back to defaults.
func NewSparseTileMap(cfg MapConfig) *SparseTileMap {
	def := DefaultMapConfig()
	if cfg.TileSize <= 0 {
		cfg.TileSize = def.TileSize
	}
	if cfg.ParticleSpacing <= 0 {
		cfg.ParticleSpacing = def.ParticleSpacing
	}
	if cfg.ParticleRadius <= 0 {
		cfg.ParticleRadius = def.ParticleRadius
	}
	if cfg.KeepMargin < 1 {
		cfg.KeepMargin = def.KeepMargin
	}
	if cfg.MaxTilesPerUpdate <= 0 {
		cfg.MaxTilesPerUpdate = def.MaxTilesPerUpdate
	}
	return &SparseTileMap{
		tiles:  map[uint64]*DenseTile{},
		evict:  map[uint64]*DenseTile{},
		saving: map[uint64]*DenseTile{},
		cfg:    cfg,
		logger: log.New(io.Discard, "", 0),
	}
}

// SetLogger routes restore/save diagnostics. Best-effort failures are logged
// here instead of failing queries.
func (m *SparseTileMap) SetLogger(l *log.Logger) {
	if l != nil {
		m.logger = l
	}
}

// SetStore attaches persistent storage. When set, materialization consults
// the store before seeding from the height field, and SaveMap writes evicted
// tiles back.
func (m *SparseTileMap) SetStore(s TileStore) { m.store = s }

// TileSize returns world meters per tile edge.
func (m *SparseTileMap) TileSize() float64 { return m.cfg.TileSize }

// InitializeMap is the one-time setup: it clears prior state, loads the
// height source and fixes the world anchor of tile (0,0). tileSize <= 0
// keeps the configured size.
func (m *SparseTileMap) InitializeMap(src Raster, origin, mapSize r3.Vec, tileSize float64) error {
	m.Clear()
	if err := m.hf.Initialize(src, r2.Vec{X: mapSize.X, Y: mapSize.Y}, r2.Vec{X: origin.X, Y: origin.Y}); err != nil {
		return fmt.Errorf("initialize map: %w", err)
	}
	if tileSize > 0 {
		m.cfg.TileSize = tileSize
	}
	m.tile0 = origin
	m.extent = mapSize
	return nil
}

// TileID packs two non-negative tile coordinates into one key. The packing
// is bijective over the full uint32 range of each axis.
func TileID(tileX, tileY uint32) uint64 {
	return uint64(tileX) | uint64(tileY)<<32
}

// TileCoords is the inverse of TileID.
func TileCoords(id uint64) (tileX, tileY uint32) {
	return uint32(id), uint32(id >> 32)
}

// tileCoord converts one world axis value to a tile coordinate. Positions
// below the world anchor clamp to 0 rather than failing the query.
func tileCoord(v, origin, size float64) uint32 {
	c := math.Floor((v - origin) / size)
	if c < 0 {
		return 0
	}
	return uint32(c)
}

// TileIDAt returns the id of the tile containing a world position.
func (m *SparseTileMap) TileIDAt(pos r3.Vec) uint64 {
	tx, ty := m.VectorTileID(pos)
	return TileID(tx, ty)
}

// VectorTileID returns the tile grid coordinates containing a world position.
func (m *SparseTileMap) VectorTileID(pos r3.Vec) (tileX, tileY uint32) {
	tx := tileCoord(pos.X, m.tile0.X, m.cfg.TileSize)
	ty := tileCoord(pos.Y, m.tile0.Y, m.cfg.TileSize)
	return m.clampTile(tx), m.clampTileY(ty)
}

// TilePosition returns the world-space min corner of a tile.
func (m *SparseTileMap) TilePosition(id uint64) r3.Vec {
	tx, ty := TileCoords(id)
	return r3.Vec{
		X: m.tile0.X + float64(tx)*m.cfg.TileSize,
		Y: m.tile0.Y + float64(ty)*m.cfg.TileSize,
		Z: m.tile0.Z,
	}
}

// TileCenter returns the center of the tile containing a world position.
func (m *SparseTileMap) TileCenter(pos r3.Vec) r3.Vec {
	c := m.TilePosition(m.TileIDAt(pos))
	half := m.cfg.TileSize / 2
	return r3.Vec{X: c.X + half, Y: c.Y + half, Z: c.Z}
}

// tilesPerAxis reports how many tiles the initialized world spans on each
// axis, or 0 when the extent is unset (no upper clamp).
func (m *SparseTileMap) tilesPerAxis() (nx, ny uint32) {
	if m.extent.X <= 0 || m.extent.Y <= 0 {
		return 0, 0
	}
	nx = uint32(math.Ceil(m.extent.X / m.cfg.TileSize))
	ny = uint32(math.Ceil(m.extent.Y / m.cfg.TileSize))
	return nx, ny
}

func (m *SparseTileMap) clampTile(tx uint32) uint32 {
	nx, _ := m.tilesPerAxis()
	if nx > 0 && tx >= nx {
		return nx - 1
	}
	return tx
}

func (m *SparseTileMap) clampTileY(ty uint32) uint32 {
	_, ny := m.tilesPerAxis()
	if ny > 0 && ty >= ny {
		return ny - 1
	}
	return ty
}

// GetTile returns the tile with the given id, materializing it first if
// needed. The returned pointer aliases map-owned state; it is safe for the
// caller that holds no lock only as long as no concurrent eviction can run
// (see ForEachParticleInRadius for the guarded alternative).
func (m *SparseTileMap) GetTile(id uint64) *DenseTile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initializeRegionLocked(id)
}

// GetTileXY is GetTile addressed by grid coordinates.
func (m *SparseTileMap) GetTileXY(tileX, tileY uint32) *DenseTile {
	return m.GetTile(TileID(tileX, tileY))
}

// GetTileAt is GetTile addressed by world position.
func (m *SparseTileMap) GetTileAt(pos r3.Vec) *DenseTile {
	return m.GetTile(m.TileIDAt(pos))
}

// InitializeRegion materializes the tile if absent and returns it. Calling it
// again for the same id is a no-op that returns the existing tile.
func (m *SparseTileMap) InitializeRegion(tileX, tileY uint32) *DenseTile {
	return m.GetTile(TileID(tileX, tileY))
}

// initializeRegionLocked is the single materialization path. Caller holds mu.
// A tile sitting in the eviction buffer or awaiting a store write is moved
// back live instead of being rebuilt, so pending deformation is never lost to
// a late query.
func (m *SparseTileMap) initializeRegionLocked(id uint64) *DenseTile {
	if t, ok := m.tiles[id]; ok {
		return t
	}
	if t, ok := m.evict[id]; ok {
		delete(m.evict, id)
		m.tiles[id] = t
		return t
	}
	if t, ok := m.saving[id]; ok {
		delete(m.saving, id)
		m.tiles[id] = t
		return t
	}
	t := &DenseTile{}
	origin := m.TilePosition(id)
	if !m.restoreFromStore(id, t) {
		end := r3.Vec{X: origin.X + m.cfg.TileSize, Y: origin.Y + m.cfg.TileSize, Z: origin.Z}
		t.InitializeTile(m.cfg.ParticleSpacing, m.cfg.SeedDepth, m.cfg.ParticleRadius, origin, end, &m.hf)
	}
	m.tiles[id] = t
	return t
}

// restoreFromStore loads a previously persisted tile. Malformed blobs fall
// back to height-field seeding; partially parseable blobs are kept, since the
// valid particles carry real deformation state.
func (m *SparseTileMap) restoreFromStore(id uint64, t *DenseTile) bool {
	if m.store == nil {
		return false
	}
	data, ok, err := m.store.Get(id)
	if err != nil {
		m.logger.Printf("tile %d: store read failed: %v", id, err)
		return false
	}
	if !ok {
		return false
	}
	if err := t.ModifyDataFromString(data); err != nil {
		m.logger.Printf("tile %d: %v", id, err)
		return len(t.Particles) > 0
	}
	return true
}

// tileRange returns the inclusive tile coordinate bounds of the axis-aligned
// window [pos-(rx,ry), pos+(rx,ry)], clamped to the world.
func (m *SparseTileMap) tileRange(pos r3.Vec, rx, ry float64) (x0, x1, y0, y1 uint32) {
	x0 = m.clampTile(tileCoord(pos.X-rx, m.tile0.X, m.cfg.TileSize))
	x1 = m.clampTile(tileCoord(pos.X+rx, m.tile0.X, m.cfg.TileSize))
	y0 = m.clampTileY(tileCoord(pos.Y-ry, m.tile0.Y, m.cfg.TileSize))
	y1 = m.clampTileY(tileCoord(pos.Y+ry, m.tile0.Y, m.cfg.TileSize))
	return x0, x1, y0, y1
}

// ParticlesInRadius returns copies of every particle within radius of center,
// drawn from all tiles whose footprint intersects the query disc. Tiles are
// materialized on demand. Each particle lives in exactly one home tile, so
// boundary particles appear once. The copies are safe to retain.
func (m *SparseTileMap) ParticlesInRadius(center r3.Vec, radius float64) []Particle {
	var out []Particle
	m.ForEachParticleInRadius(center, radius, func(p *Particle) {
		out = append(out, *p)
	})
	return out
}

// ForEachParticleInRadius runs fn on every in-radius particle while holding
// the map lock, so fn may mutate the particle (force application) without
// racing a concurrent eviction. fn must not call back into the map and must
// not retain the pointer.
func (m *SparseTileMap) ForEachParticleInRadius(center r3.Vec, radius float64, fn func(p *Particle)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	x0, x1, y0, y1 := m.tileRange(center, radius, radius)
	for ty := y0; ty <= y1; ty++ {
		for tx := x0; tx <= x1; tx++ {
			t := m.initializeRegionLocked(TileID(tx, ty))
			for _, p := range t.ParticlesInRadius(center, radius) {
				fn(p)
			}
		}
	}
}

// LoadTilesAtPosition materializes every tile intersecting the window around
// position. Already-loaded tiles are untouched; the load is additive and
// never evicts.
func (m *SparseTileMap) LoadTilesAtPosition(pos r3.Vec, radiusX, radiusY float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	x0, x1, y0, y1 := m.tileRange(pos, radiusX, radiusY)
	for ty := y0; ty <= y1; ty++ {
		for tx := x0; tx <= x1; tx++ {
			m.initializeRegionLocked(TileID(tx, ty))
		}
	}
}

// Update is one streaming step: materialize tiles newly inside the load
// window (at most MaxTilesPerUpdate per call) and move tiles that left the
// expanded keep window into the eviction buffer. Evicted tiles disappear from
// the live table atomically with respect to queries; they are serialized
// later by SaveMap, never visible in both places.
func (m *SparseTileMap) Update(pos r3.Vec, radiusX, radiusY float64) (loaded, evicted int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	x0, x1, y0, y1 := m.tileRange(pos, radiusX, radiusY)
load:
	for ty := y0; ty <= y1; ty++ {
		for tx := x0; tx <= x1; tx++ {
			id := TileID(tx, ty)
			if _, ok := m.tiles[id]; ok {
				continue
			}
			m.initializeRegionLocked(id)
			loaded++
			if loaded >= m.cfg.MaxTilesPerUpdate {
				break load
			}
		}
	}

	kx0, kx1, ky0, ky1 := m.tileRange(pos, radiusX*m.cfg.KeepMargin, radiusY*m.cfg.KeepMargin)
	for id, t := range m.tiles {
		tx, ty := TileCoords(id)
		if tx >= kx0 && tx <= kx1 && ty >= ky0 && ty <= ky1 {
			continue
		}
		delete(m.tiles, id)
		m.evict[id] = t
		evicted++
	}
	return loaded, evicted
}

// SaveMap drains the eviction buffer to the attached store. Blobs are
// serialized under the map lock; the store writes happen outside it so
// queries are never blocked on I/O. While a write is in flight the tile stays
// reachable through the saving set, so a concurrent query resurrects it
// instead of reseeding from the height field. Write failures are logged and
// counted, not fatal; streaming continues with in-memory state.
func (m *SparseTileMap) SaveMap() (saved int, err error) {
	m.mu.Lock()
	batch := m.evict
	m.evict = map[uint64]*DenseTile{}
	var blobs map[uint64]string
	if m.store != nil && len(batch) > 0 {
		blobs = make(map[uint64]string, len(batch))
		for id, t := range batch {
			m.saving[id] = t
			blobs[id] = t.String()
		}
	}
	m.mu.Unlock()

	if len(blobs) == 0 {
		return 0, nil
	}
	failures := 0
	for id, data := range blobs {
		perr := m.store.Put(id, data)
		m.mu.Lock()
		delete(m.saving, id)
		m.mu.Unlock()
		if perr != nil {
			failures++
			m.logger.Printf("tile %d: store write failed: %v", id, perr)
			continue
		}
		saved++
	}
	if failures > 0 {
		return saved, fmt.Errorf("save map: %d tile writes failed", failures)
	}
	return saved, nil
}

// SaveAll persists the eviction buffer and every live tile. Intended for
// final shutdown; live tiles stay resident.
func (m *SparseTileMap) SaveAll() (saved int, err error) {
	saved, err = m.SaveMap()
	if m.store == nil {
		return saved, err
	}

	m.mu.Lock()
	live := make(map[uint64]string, len(m.tiles))
	for id, t := range m.tiles {
		live[id] = t.String()
	}
	m.mu.Unlock()

	failures := 0
	for id, data := range live {
		if perr := m.store.Put(id, data); perr != nil {
			failures++
			m.logger.Printf("tile %d: store write failed: %v", id, perr)
			continue
		}
		saved++
	}
	if failures > 0 {
		return saved, fmt.Errorf("save all: %d tile writes failed", failures)
	}
	return saved, err
}

// ExportTiles serializes every tile still held in memory, for archive
// snapshots: live, evicting and mid-save.
func (m *SparseTileMap) ExportTiles() map[uint64]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uint64]string, len(m.tiles)+len(m.evict)+len(m.saving))
	for id, t := range m.tiles {
		out[id] = t.String()
	}
	for id, t := range m.evict {
		out[id] = t.String()
	}
	for id, t := range m.saving {
		out[id] = t.String()
	}
	return out
}

// LoadedTileIDs returns the ids of live tiles in ascending order.
func (m *SparseTileMap) LoadedTileIDs() []uint64 {
	m.mu.Lock()
	ids := make([]uint64, 0, len(m.tiles))
	for id := range m.tiles {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// LiveTileCount reports how many tiles are currently in the live table.
func (m *SparseTileMap) LiveTileCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tiles)
}

// PostPosition records the next streaming target. Called by the simulation
// tick; takes only the position lock, so it never waits on tile I/O.
func (m *SparseTileMap) PostPosition(pos r3.Vec) {
	m.posMu.Lock()
	m.pending = pos
	m.hasPending = true
	m.posMu.Unlock()
}

// PendingPosition snapshots the last posted target. ok is false until the
// first PostPosition.
func (m *SparseTileMap) PendingPosition() (pos r3.Vec, ok bool) {
	m.posMu.Lock()
	defer m.posMu.Unlock()
	return m.pending, m.hasPending
}

// Clear drops all tiles, the eviction buffer, the pending position and the
// height field. The map is unusable until InitializeMap runs again.
func (m *SparseTileMap) Clear() {
	m.mu.Lock()
	m.tiles = map[uint64]*DenseTile{}
	m.evict = map[uint64]*DenseTile{}
	m.saving = map[uint64]*DenseTile{}
	m.hf.Clear()
	m.extent = r3.Vec{}
	m.mu.Unlock()

	m.posMu.Lock()
	m.pending = r3.Vec{}
	m.hasPending = false
	m.posMu.Unlock()
}
