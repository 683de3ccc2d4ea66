// Command mkfs formats a host file as an easy-fs-style disk image and
// optionally copies the top-level files of a host directory into its
// root directory, skipping (with a message) files in subdirectories,
// adapted from the teacher's mkfs command
// (biscuit/src/mkfs/mkfs.go), reduced to this kernel's single-directory
// file system (component O has no subdirectories).
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/gokernel/rvos/fs"
)

// totalBlocks/inodeBitmapBlocks follow easy-fs's own reference sizing (a
// 2 MiB image, 1 inode-bitmap block good for up to 4096 inodes): each
// inode-bitmap block drives roughly 1024 inode-area blocks
// (4096 inodes * 128-byte DiskInode / 512-byte block), so a single
// bitmap block already needs on the order of a thousand total blocks to
// fit alongside it.
const (
	totalBlocks       = 4096
	inodeBitmapBlocks = 1
)

func usage(me string) {
	fmt.Printf("%s <image> [skeleton dir]\n\nFormat <image> as a disk image; copy files from [skeleton dir] into its root directory\n", me)
	os.Exit(1)
}

func copyFile(root *fs.Inode, hostPath, name string) {
	data, err := os.ReadFile(hostPath)
	if err != nil {
		log.Fatalf("mkfs: read %s: %v", hostPath, err)
	}
	inode, ok := root.Create(name)
	if !ok {
		log.Fatalf("mkfs: create %s: name already exists", name)
	}
	if n := inode.WriteAt(0, data); n != len(data) {
		log.Fatalf("mkfs: short write copying %s (%d of %d bytes)", name, n, len(data))
	}
}

func addSkeleton(root *fs.Inode, skelDir string) {
	err := filepath.WalkDir(skelDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(skelDir, path)
		if err != nil {
			return err
		}
		if filepath.Dir(rel) != "." {
			fmt.Printf("mkfs: skipping %s: no subdirectories in this file system\n", rel)
			return nil
		}
		copyFile(root, path, rel)
		return nil
	})
	if err != nil && err != io.EOF {
		log.Fatalf("mkfs: walk %s: %v", skelDir, err)
	}
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Args[0])
	}
	image := os.Args[1]

	dev, err := fs.OpenFileDisk(image, totalBlocks)
	if err != nil {
		log.Fatalf("mkfs: open %s: %v", image, err)
	}

	fsys := fs.Create(dev, totalBlocks, inodeBitmapBlocks)
	root := fs.RootInode(fsys)

	if len(os.Args) >= 3 {
		addSkeleton(root, os.Args[2])
	}

	if err := fsys.SyncAll(); err != nil {
		log.Fatalf("mkfs: sync: %v", err)
	}
	if err := dev.Close(); err != nil {
		log.Fatalf("mkfs: close: %v", err)
	}
	fmt.Printf("mkfs: wrote %s (%d blocks, %d inode-bitmap blocks)\n", image, totalBlocks, inodeBitmapBlocks)
}
