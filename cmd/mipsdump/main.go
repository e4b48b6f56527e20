// Command mipsdump disassembles a raw or ELF-wrapped MIPS32 firmware
// image for offline inspection, the same workflow a BFC0_0000 boot
// hang invites: dump the image, find the instruction at the PC the
// emulator printed, read it by eye. It understands plain R2 integer
// encodings only — MIPS16e compressed instructions and CP1/CP2 detail
// beyond the bare mnemonic are out of scope for a quick dump.
package main

import (
	"debug/elf"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
)

func main() {
	endian := flag.String("endian", "auto", "byte order for raw images: auto, big, or little")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Println("usage: mipsdump [-endian=auto|big|little] <mips32-image>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fileName := flag.Arg(0)
	file, err := os.Open(fileName)
	if err != nil {
		log.Fatalf("failed to open file: %v", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Printf("failed to close file: %v", err)
		}
	}()

	if elfFile, err := elf.Open(fileName); err == nil {
		defer func() {
			if err := elfFile.Close(); err != nil {
				log.Printf("failed to close ELF file: %v", err)
			}
		}()
		disassembleELF(elfFile)
		return
	}

	fmt.Println("not an ELF file, treating as raw binary")
	order, err := rawByteOrder(*endian)
	if err != nil {
		log.Fatal(err)
	}
	disassembleRaw(file, order)
}

// rawByteOrder resolves the -endian flag for raw (non-ELF) images;
// "auto" assumes big-endian, matching the router firmware images this
// tool exists to inspect.
func rawByteOrder(endian string) (binary.ByteOrder, error) {
	switch endian {
	case "auto", "big":
		return binary.BigEndian, nil
	case "little":
		return binary.LittleEndian, nil
	default:
		return nil, fmt.Errorf("invalid -endian value %q: must be auto, big, or little", endian)
	}
}

func disassembleELF(elfFile *elf.File) {
	fmt.Printf("ELF File: %s\n", elfFile.Machine)
	fmt.Printf("Entry point: 0x%08X\n", elfFile.Entry)
	fmt.Println()

	var order binary.ByteOrder = binary.BigEndian
	if elfFile.ByteOrder == binary.LittleEndian {
		order = binary.LittleEndian
		fmt.Println("using byte order: little-endian (from ELF header)")
	} else {
		fmt.Println("using byte order: big-endian (from ELF header)")
	}
	fmt.Println()

	fmt.Println("ELF sections:")
	fmt.Println("-------------")
	for _, section := range elfFile.Sections {
		fmt.Printf("  %-20s type: %-15s addr: 0x%08X size: %-8d flags: %s\n",
			section.Name, section.Type.String(), section.Addr, section.Size, sectionFlagsString(section.Flags))
	}
	fmt.Println()

	textSection := elfFile.Section(".text")
	if textSection == nil {
		fmt.Println("warning: no .text section found")
		for _, section := range elfFile.Sections {
			if section.Flags&elf.SHF_EXECINSTR != 0 {
				fmt.Printf("found executable section: %s\n", section.Name)
				disassembleSection(section, order)
			}
		}
		return
	}

	fmt.Printf("disassembling .text (0x%08X - 0x%08X):\n", textSection.Addr, textSection.Addr+textSection.Size)
	disassembleSection(textSection, order)
}

func disassembleSection(section *elf.Section, order binary.ByteOrder) {
	data, err := section.Data()
	if err != nil {
		log.Printf("failed to read section %s: %v", section.Name, err)
		return
	}

	addr := section.Addr
	for i := 0; i+4 <= len(data); i += 4 {
		inst := order.Uint32(data[i : i+4])
		fmt.Printf("0x%08X: 0x%08X\t%s\n", addr+uint64(i), inst, disassemble(inst, uint32(addr+uint64(i))))
	}
}

func sectionFlagsString(flags elf.SectionFlag) string {
	var result string
	if flags&elf.SHF_WRITE != 0 {
		result += "W"
	}
	if flags&elf.SHF_ALLOC != 0 {
		result += "A"
	}
	if flags&elf.SHF_EXECINSTR != 0 {
		result += "X"
	}
	if result == "" {
		result = "-"
	}
	return result
}

func disassembleRaw(file *os.File, order binary.ByteOrder) {
	fmt.Printf("using byte order: %v\n", order)
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		log.Fatalf("failed to seek file: %v", err)
	}

	var offset int64
	for {
		var inst uint32
		if err := binary.Read(file, order, &inst); err != nil {
			break
		}
		fmt.Printf("0x%08X: 0x%08X\t%s\n", offset, inst, disassemble(inst, uint32(offset)))
		offset += 4
	}
}

// disassemble renders one 32-bit MIPS32 word as a mnemonic line; it
// does not attempt to track register-file or delay-slot state, so
// branch targets are printed but not annotated.
func disassemble(inst uint32, pc uint32) string {
	op := inst >> 26

	switch op {
	case 0x0:
		return disassembleR(inst)
	case 0x1:
		return disassembleRegimm(inst, pc)
	case 0x2:
		addr := inst & 0x3FFFFFF
		target := ((pc + 4) & 0xF0000000) | (addr << 2)
		return fmt.Sprintf("j 0x%08X", target)
	case 0x3:
		addr := inst & 0x3FFFFFF
		target := ((pc + 4) & 0xF0000000) | (addr << 2)
		return fmt.Sprintf("jal 0x%08X", target)
	default:
		return disassembleI(op, inst, pc)
	}
}

func disassembleR(inst uint32) string {
	rs := (inst >> 21) & 0x1F
	rt := (inst >> 16) & 0x1F
	rd := (inst >> 11) & 0x1F
	shamt := (inst >> 6) & 0x1F
	funct := inst & 0x3F

	switch funct {
	case 0x20:
		return fmt.Sprintf("add $%d, $%d, $%d", rd, rs, rt)
	case 0x21:
		return fmt.Sprintf("addu $%d, $%d, $%d", rd, rs, rt)
	case 0x22:
		return fmt.Sprintf("sub $%d, $%d, $%d", rd, rs, rt)
	case 0x23:
		return fmt.Sprintf("subu $%d, $%d, $%d", rd, rs, rt)
	case 0x24:
		return fmt.Sprintf("and $%d, $%d, $%d", rd, rs, rt)
	case 0x25:
		return fmt.Sprintf("or $%d, $%d, $%d", rd, rs, rt)
	case 0x26:
		return fmt.Sprintf("xor $%d, $%d, $%d", rd, rs, rt)
	case 0x27:
		return fmt.Sprintf("nor $%d, $%d, $%d", rd, rs, rt)
	case 0x2A:
		return fmt.Sprintf("slt $%d, $%d, $%d", rd, rs, rt)
	case 0x2B:
		return fmt.Sprintf("sltu $%d, $%d, $%d", rd, rs, rt)
	case 0x00:
		return fmt.Sprintf("sll $%d, $%d, %d", rd, rt, shamt)
	case 0x02:
		return fmt.Sprintf("srl $%d, $%d, %d", rd, rt, shamt)
	case 0x03:
		return fmt.Sprintf("sra $%d, $%d, %d", rd, rt, shamt)
	case 0x04:
		return fmt.Sprintf("sllv $%d, $%d, $%d", rd, rt, rs)
	case 0x06:
		return fmt.Sprintf("srlv $%d, $%d, $%d", rd, rt, rs)
	case 0x07:
		return fmt.Sprintf("srav $%d, $%d, $%d", rd, rt, rs)
	case 0x08:
		return fmt.Sprintf("jr $%d", rs)
	case 0x09:
		return fmt.Sprintf("jalr $%d, $%d", rd, rs)
	case 0x10:
		return fmt.Sprintf("mfhi $%d", rd)
	case 0x11:
		return fmt.Sprintf("mthi $%d", rs)
	case 0x12:
		return fmt.Sprintf("mflo $%d", rd)
	case 0x13:
		return fmt.Sprintf("mtlo $%d", rs)
	case 0x18:
		return fmt.Sprintf("mult $%d, $%d", rs, rt)
	case 0x19:
		return fmt.Sprintf("multu $%d, $%d", rs, rt)
	case 0x1A:
		return fmt.Sprintf("div $%d, $%d", rs, rt)
	case 0x1B:
		return fmt.Sprintf("divu $%d, $%d", rs, rt)
	case 0x0C:
		return "syscall"
	case 0x0D:
		return "break"
	case 0x0F:
		return "sync"
	default:
		return fmt.Sprintf("unknown R-funct 0x%02X", funct)
	}
}

func disassembleI(op, inst uint32, pc uint32) string {
	rs := (inst >> 21) & 0x1F
	rt := (inst >> 16) & 0x1F
	imm := inst & 0xFFFF
	signExt := int32(int16(imm))

	switch op {
	case 0x08:
		return fmt.Sprintf("addi $%d, $%d, %d", rt, rs, int16(imm))
	case 0x09:
		return fmt.Sprintf("addiu $%d, $%d, %d", rt, rs, int16(imm))
	case 0x0C:
		return fmt.Sprintf("andi $%d, $%d, %d", rt, rs, imm)
	case 0x0D:
		return fmt.Sprintf("ori $%d, $%d, %d", rt, rs, imm)
	case 0x0E:
		return fmt.Sprintf("xori $%d, $%d, %d", rt, rs, imm)
	case 0x0A:
		return fmt.Sprintf("slti $%d, $%d, %d", rt, rs, int16(imm))
	case 0x0B:
		return fmt.Sprintf("sltiu $%d, $%d, %d", rt, rs, int16(imm))
	case 0x0F:
		return fmt.Sprintf("lui $%d, 0x%04X", rt, imm)
	case 0x23:
		return fmt.Sprintf("lw $%d, %d($%d)", rt, int16(imm), rs)
	case 0x20:
		return fmt.Sprintf("lb $%d, %d($%d)", rt, int16(imm), rs)
	case 0x21:
		return fmt.Sprintf("lh $%d, %d($%d)", rt, int16(imm), rs)
	case 0x24:
		return fmt.Sprintf("lbu $%d, %d($%d)", rt, int16(imm), rs)
	case 0x25:
		return fmt.Sprintf("lhu $%d, %d($%d)", rt, int16(imm), rs)
	case 0x22:
		return fmt.Sprintf("lwl $%d, %d($%d)", rt, int16(imm), rs)
	case 0x26:
		return fmt.Sprintf("lwr $%d, %d($%d)", rt, int16(imm), rs)
	case 0x2B:
		return fmt.Sprintf("sw $%d, %d($%d)", rt, int16(imm), rs)
	case 0x28:
		return fmt.Sprintf("sb $%d, %d($%d)", rt, int16(imm), rs)
	case 0x29:
		return fmt.Sprintf("sh $%d, %d($%d)", rt, int16(imm), rs)
	case 0x2A:
		return fmt.Sprintf("swl $%d, %d($%d)", rt, int16(imm), rs)
	case 0x2E:
		return fmt.Sprintf("swr $%d, %d($%d)", rt, int16(imm), rs)
	case 0x30:
		return fmt.Sprintf("ll $%d, %d($%d)", rt, int16(imm), rs)
	case 0x38:
		return fmt.Sprintf("sc $%d, %d($%d)", rt, int16(imm), rs)
	case 0x04:
		return fmt.Sprintf("beq $%d, $%d, 0x%08X", rs, rt, pc+4+uint32(signExt<<2))
	case 0x05:
		return fmt.Sprintf("bne $%d, $%d, 0x%08X", rs, rt, pc+4+uint32(signExt<<2))
	case 0x06:
		return fmt.Sprintf("blez $%d, 0x%08X", rs, pc+4+uint32(signExt<<2))
	case 0x07:
		return fmt.Sprintf("bgtz $%d, 0x%08X", rs, pc+4+uint32(signExt<<2))
	case 0x10:
		return disassembleCop0(inst)
	default:
		return fmt.Sprintf("unknown I-op 0x%02X", op)
	}
}

func disassembleRegimm(inst uint32, pc uint32) string {
	rs := (inst >> 21) & 0x1F
	rt := (inst >> 16) & 0x1F
	imm := inst & 0xFFFF
	target := pc + 4 + uint32(int32(int16(imm))<<2)

	switch rt {
	case 0x00:
		return fmt.Sprintf("bltz $%d, 0x%08X", rs, target)
	case 0x01:
		return fmt.Sprintf("bgez $%d, 0x%08X", rs, target)
	case 0x10:
		return fmt.Sprintf("bltzal $%d, 0x%08X", rs, target)
	case 0x11:
		return fmt.Sprintf("bgezal $%d, 0x%08X", rs, target)
	default:
		return fmt.Sprintf("unknown regimm rt=0x%02X", rt)
	}
}

func disassembleCop0(inst uint32) string {
	rs := (inst >> 21) & 0x1F
	rt := (inst >> 16) & 0x1F
	rd := (inst >> 11) & 0x1F

	switch rs {
	case 0x00:
		return fmt.Sprintf("mfc0 $%d, $%d", rt, rd)
	case 0x04:
		return fmt.Sprintf("mtc0 $%d, $%d", rt, rd)
	case 0x10:
		switch inst & 0x3F {
		case 0x01:
			return "tlbr"
		case 0x02:
			return "tlbwi"
		case 0x06:
			return "tlbwr"
		case 0x08:
			return "tlbp"
		case 0x18:
			return "eret"
		case 0x1F:
			return "deret"
		case 0x20:
			return "wait"
		default:
			return fmt.Sprintf("cop0-co funct=0x%02X", inst&0x3F)
		}
	default:
		return fmt.Sprintf("unknown cop0 rs=0x%02X", rs)
	}
}
