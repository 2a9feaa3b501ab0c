package region

// Magic gates whether a region is freshly zeroed or already holds a
// filesystem: its presence means "already initialised; do not touch."
// Any future layout revision must mint a new magic.
const Magic uint32 = 0xADDBEEF

// Fixed-size, natural-alignment struct layout. These sizes are pinned here
// so that every mount session of the same region, across every package,
// agrees on byte offsets: the layout must stay identical across all
// mount sessions of the same region.
const (
	// Superblock layout: Magic(4) Reserved(4) RegionSize(8) RootInode(8)
	// FreeHead(8), padded out to a round 64 bytes.
	SuperblockSize = 64

	superblockMagicOff      = 0
	superblockRegionSizeOff = 8
	superblockRootInodeOff  = 16
	superblockFreeHeadOff   = 24

	// FreeBlockHeader layout: Remaining(8) Next(8), padded to 24 bytes.
	FreeBlockHeaderSize = 24

	freeBlockRemainingOff = 0
	freeBlockNextOff      = 8

	// Inode layout: Name(256) Atime(8) Mtime(8) Type(4) pad(4) Body(32).
	InodeNameSize = 256
	InodeSize     = InodeNameSize + 8 + 8 + 4 + 4 + 32

	InodeNameOff  = 0
	InodeAtimeOff = InodeNameSize
	InodeMtimeOff = InodeAtimeOff + 8
	InodeTypeOff  = InodeMtimeOff + 8
	InodeBodyOff  = InodeTypeOff + 8 // 4 bytes of type + 4 bytes padding

	// File body (within Inode.Body): Size(8) FirstBlock(8).
	FileBodySizeOff       = 0
	FileBodyFirstBlockOff = 8

	// Directory body (within Inode.Body): NumChildren(8) Children(8).
	DirBodyNumChildrenOff = 0
	DirBodyChildrenOff    = 8

	// ChildrenArrayHeader layout: Capacity(8), padded to 16 bytes. Slots
	// follow immediately as Capacity*8 bytes of child offsets.
	ChildrenHeaderSize = 16

	ChildrenCapacityOff = 0
	ChildrenSlotsOff    = ChildrenHeaderSize

	// FileBlockHeader layout: Capacity(8) Allocated(8) Next(8), padded to
	// 24 bytes. The data area of Capacity bytes follows immediately.
	FileBlockHeaderSize = 24

	FileBlockCapacityOff  = 0
	FileBlockAllocatedOff = 8
	FileBlockNextOff      = 16
	FileBlockDataOff      = FileBlockHeaderSize
)

// BlockSize is the preferred capacity of a single file data block.
const BlockSize = 1024

// MaxNameLen is the longest name (excluding the NUL terminator) that fits
// in an Inode's name buffer.
const MaxNameLen = InodeNameSize - 1

// InitialChildCapacity is the slot count of a directory's first children
// array allocation; it doubles on overflow thereafter.
const InitialChildCapacity = 4

// Inode type discriminants.
const (
	TypeFile uint32 = 1
	TypeDir  uint32 = 2
)

// Superblock is a typed accessor over the fixed superblock record at
// offset 0 of a Region. It holds no state of its own; every read/write
// goes straight through to the Region.
type Superblock struct {
	r *Region
}

// LoadSuperblock returns an accessor for the superblock already present in
// r. Callers must check Present() before trusting the fields.
func LoadSuperblock(r *Region) Superblock {
	return Superblock{r: r}
}

// Present reports whether the magic number is set, i.e. whether this
// region already holds an initialised filesystem.
func (s Superblock) Present() bool {
	return s.r.ReadUint32(superblockMagicOff) == Magic
}

// Init writes a fresh superblock header. It does not touch anything past
// SuperblockSize; the caller is responsible for laying out the root inode
// and the initial free block.
func (s Superblock) Init(regionSize, rootInode, freeHead uint64) {
	s.r.WriteUint64(superblockRegionSizeOff, regionSize)
	s.r.WriteUint64(superblockRootInodeOff, rootInode)
	s.r.WriteUint64(superblockFreeHeadOff, freeHead)
	s.r.WriteUint32(superblockMagicOff, Magic)
}

func (s Superblock) RegionSize() uint64 { return s.r.ReadUint64(superblockRegionSizeOff) }
func (s Superblock) RootInode() uint64  { return s.r.ReadUint64(superblockRootInodeOff) }
func (s Superblock) FreeHead() uint64   { return s.r.ReadUint64(superblockFreeHeadOff) }

func (s Superblock) SetFreeHead(off uint64) {
	s.r.WriteUint64(superblockFreeHeadOff, off)
}
