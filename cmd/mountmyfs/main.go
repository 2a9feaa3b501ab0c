// Command mountmyfs mounts a myfs region, backed by a memory-mapped file,
// at a FUSE mount point. It stays in the foreground until the mount point
// is unmounted.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/timeutil"
	"golang.org/x/sys/unix"

	"github.com/AriathGonzalez/myfs/fuseadapter"
)

var (
	fBackingFile = flag.String("backing_file", "", "Path to the region's backing file. Created if it does not exist.")
	fSize        = flag.Uint64("size", 64<<20, "Region size in bytes, used only when creating a new backing file.")
	fMountPoint  = flag.String("mount_point", "", "Path to mount point.")
)

func main() {
	flag.Parse()

	if *fBackingFile == "" {
		log.Fatalf("You must set --backing_file.")
	}
	if *fMountPoint == "" {
		log.Fatalf("You must set --mount_point.")
	}

	buf, f, err := openBackingFile(*fBackingFile, *fSize)
	if err != nil {
		log.Fatalf("openBackingFile: %v", err)
	}
	defer f.Close()

	// Attributes are computed per call from the calling request's own
	// header (see fuseadapter.FS.GetInodeAttributes), so there is no
	// current-user uid/gid lookup to do here.
	server, err := fuseadapter.New(buf, timeutil.RealClock())
	if err != nil {
		log.Fatalf("fuseadapter.New: %v", err)
	}

	cfg := &fuse.MountConfig{
		// Disable writeback caching so that pid is always available in OpContext.
		DisableWritebackCaching: true,
	}

	mfs, err := fuse.Mount(*fMountPoint, server, cfg)
	if err != nil {
		log.Fatalf("Mount: %v", err)
	}

	go syncOnSignal(buf)

	if err = mfs.Join(context.Background()); err != nil {
		log.Fatalf("Join: %v", err)
	}

	if err := unix.Msync(buf, unix.MS_SYNC); err != nil {
		log.Printf("final Msync: %v", err)
	}
}

// openBackingFile opens path, creating and sizing it if it does not yet
// exist, and returns it mmap'd MAP_SHARED so every write lands directly in
// the file. The returned file must be kept open for as long as buf is in
// use; closing it does not unmap the region, but the caller must not let
// it be garbage collected first.
func openBackingFile(path string, size uint64) ([]byte, *os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	if info.Size() == 0 {
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			return nil, nil, err
		}
	} else {
		size = uint64(info.Size())
	}

	buf, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	return buf, f, nil
}

// syncOnSignal flushes the mapping to the backing file on SIGINT/SIGTERM,
// since an unclean shutdown would otherwise leave writes visible only in
// the page cache's own eventual writeback.
func syncOnSignal(buf []byte) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	if err := unix.Msync(buf, unix.MS_SYNC); err != nil {
		log.Printf("Msync: %v", err)
	}
}
