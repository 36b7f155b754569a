package rawsock

import (
	"fmt"

	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"

	"github.com/kangtastic/peapod/internal/frame"
)

// eapolFilterProgram assembles the classic BPF program from spec.md
// §4.2: accept iff the 2 bytes at offset 12 (the EtherType, after any
// 802.1Q tag has already been stripped by the kernel) equal 0x888E.
// Grounded on jollaman999-net-finder/internal/netutil/bpf.go's
// Instruction/Assemble idiom for the pack's other classic BPF filters.
func eapolFilterProgram() ([]bpf.RawInstruction, error) {
	return bpf.Assemble([]bpf.Instruction{
		bpf.LoadAbsolute{Off: 12, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: frame.EAPOLEtherType, SkipTrue: 0, SkipFalse: 1},
		bpf.RetConstant{Val: 0x40000},
		bpf.RetConstant{Val: 0},
	})
}

func attachFilter(fd int) error {
	instrs, err := eapolFilterProgram()
	if err != nil {
		return fmt.Errorf("assemble BPF program: %w", err)
	}

	filters := make([]unix.SockFilter, len(instrs))
	for i, in := range instrs {
		filters[i] = unix.SockFilter{Code: in.Op, Jt: in.Jt, Jf: in.Jf, K: in.K}
	}

	prog := unix.SockFprog{
		Len:    uint16(len(filters)),
		Filter: &filters[0],
	}
	return unix.SetsockoptSockFprog(fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, &prog)
}
