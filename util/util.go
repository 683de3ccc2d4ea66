// Package util holds the on-disk/wire little-endian field access this
// kernel's fixed-layout byte regions are built from: super blocks and
// disk inodes (fs/layout.go), directory entries (fs/dir.go), indirect
// index blocks (fs/inode.go), and the argument/return byte blocks
// syscalls marshal into user memory (trap/syscall.go, accnt/accnt.go).
// The teacher's util package reaches for unsafe pointer punning sized
// by a runtime n; this kernel instead goes through encoding/binary,
// since every field it marshals already arrives as a byte slice
// rather than something it can reinterpret as a typed pointer.
package util

import "encoding/binary"

// Int is satisfied by all built-in integer types, used by CeilDiv,
// which the language's builtin min/max cannot cover since ceiling
// division isn't a reduction over two comparable values.
type Int interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Readn reads an n-byte little-endian unsigned field out of a at off
// and widens it to int. It panics if the requested region is out of
// bounds or n is not one of 1, 2, 4, or 8.
func Readn(a []uint8, n int, off int) int {
	switch n {
	case 8:
		return int(binary.LittleEndian.Uint64(a[off : off+8]))
	case 4:
		return int(binary.LittleEndian.Uint32(a[off : off+4]))
	case 2:
		return int(binary.LittleEndian.Uint16(a[off : off+2]))
	case 1:
		return int(a[off])
	default:
		panic("util: Readn unsupported size")
	}
}

// Writen writes val as an sz-byte little-endian field into a at off.
// It panics if the destination is out of bounds or sz is not one of
// 1, 2, 4, or 8.
func Writen(a []uint8, sz int, off int, val int) {
	switch sz {
	case 8:
		binary.LittleEndian.PutUint64(a[off:off+8], uint64(val))
	case 4:
		binary.LittleEndian.PutUint32(a[off:off+4], uint32(val))
	case 2:
		binary.LittleEndian.PutUint16(a[off:off+2], uint16(val))
	case 1:
		a[off] = uint8(val)
	default:
		panic("util: Writen unsupported size")
	}
}

// CeilDiv returns ceil(a/b) for positive integers, used for the
// block-count math in fs/layout.go that the builtin min/max functions
// don't cover.
func CeilDiv[T Int](a, b T) T {
	return (a + b - 1) / b
}
