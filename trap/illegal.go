package trap

import (
	"fmt"

	"golang.org/x/arch/riscv64/riscv64asm"
)

// DisassembleFault decodes the four bytes of the faulting instruction
// for a SIGILL diagnostic message (§4.9's "hardware exceptions ...
// translated to signals" path). There is no real RISC-V instruction
// stream in this simulated kernel, and no code path calls it: Step
// raises SIGILL for an unrecognized syscall without a disassembly.
func DisassembleFault(code []byte) string {
	inst, err := riscv64asm.Decode(code)
	if err != nil {
		return fmt.Sprintf("<undecodable: %v>", err)
	}
	return inst.String()
}
