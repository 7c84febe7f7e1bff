// Package ncr describes the NCR 53C710 SCSI I/O processor as it appears
// on the A4091: register offsets inside the card's register window, the
// control and status bits the diagnostic drives, and a read-only
// definition table used for register dumps.
package ncr

// Card address window layout, relative to the configured board address.
const (
	OffsetAutoconfig = 0x00000000
	OffsetROM        = 0x00000000
	OffsetRegisters  = 0x00800000
	OffsetSwitches   = 0x008c0003

	// Writes go to a shadow alias of the register block to dodge the
	// 68030 cache write-allocate defect; reads use the live offsets.
	ShadowOffset = 0x40

	// Register window size covered by the definition table.
	RegWindowSize = 0x40
)

// Zorro expansion IDs for the A4091.
const (
	ZorroMfgCommodore = 0x0202
	ZorroProdA4091    = 0x0054
)

// Interrupt line and server priority used by the diagnostic handler.
const (
	IntLine = 3
	IntPri  = 30
)

// Register offsets. The 53C710 is a big-endian part on the A4091, so
// byte offsets within each longword run high-to-low.
const (
	RegSCNTL0  = 0x03 // SCSI control 0
	RegSCNTL1  = 0x02 // SCSI control 1
	RegSDID    = 0x01 // SCSI destination ID
	RegSIEN    = 0x00 // SCSI interrupt enable
	RegSCID    = 0x07 // SCSI chip ID
	RegSXFER   = 0x06 // SCSI transfer
	RegSODL    = 0x05 // SCSI output data latch
	RegSOCL    = 0x04 // SCSI output control latch
	RegSFBR    = 0x0b // SCSI first byte received
	RegSIDL    = 0x0a // SCSI input data latch
	RegSBDL    = 0x09 // SCSI bus data lines
	RegSBCL    = 0x08 // SCSI bus control lines
	RegDSTAT   = 0x0f // DMA status
	RegSSTAT0  = 0x0e // SCSI status 0
	RegSSTAT1  = 0x0d // SCSI status 1
	RegSSTAT2  = 0x0c // SCSI status 2
	RegDSA     = 0x10 // Data structure address
	RegCTEST0  = 0x17 // Chip test 0
	RegCTEST1  = 0x16 // Chip test 1: FIFO empty/full nibbles
	RegCTEST2  = 0x15 // Chip test 2
	RegCTEST3  = 0x14 // Chip test 3: SCSI FIFO
	RegCTEST4  = 0x1b // Chip test 4: MUX ZMOD SZM SLBE SFWR FBL2-FBL0
	RegCTEST5  = 0x1a // Chip test 5
	RegCTEST6  = 0x19 // Chip test 6: DMA FIFO
	RegCTEST7  = 0x18 // Chip test 7
	RegTEMP    = 0x1c // Temporary stack
	RegDFIFO   = 0x23 // DMA FIFO
	RegISTAT   = 0x22 // Interrupt status
	RegCTEST8  = 0x21 // Chip test 8
	RegLCRC    = 0x20 // Longitudinal parity
	RegDBC     = 0x25 // DMA byte counter
	RegDCMD    = 0x24 // DMA command
	RegDNAD    = 0x28 // DMA next address for data
	RegDSP     = 0x2c // DMA SCRIPTS pointer
	RegDSPS    = 0x30 // DMA SCRIPTS pointer save
	RegSCRATCH = 0x34 // General purpose scratch pad
	RegDMODE   = 0x3b // DMA mode
	RegDIEN    = 0x3a // DMA interrupt enable
	RegDWT     = 0x39 // DMA watchdog timer
	RegDCNTL   = 0x38 // DMA control
	RegADDER   = 0x3c // Sum output of internal adder
)

// SCNTL0 bits.
const (
	SCNTL0_EPG = 1 << 2 // Generate parity on the SCSI bus
)

// SCNTL1 bits.
const (
	SCNTL1_AESP = 1 << 2 // Assert even SCSI data parity
	SCNTL1_RST  = 1 << 3 // Assert reset on the SCSI bus
	SCNTL1_ADB  = 1 << 6 // Assert SCSI data bus (SODL/SOCL registers)
)

// ISTAT bits.
const (
	ISTAT_DIP  = 1 << 0 // DMA interrupt pending
	ISTAT_SIP  = 1 << 1 // SCSI interrupt pending
	ISTAT_RST  = 1 << 6 // Reset the 53C710
	ISTAT_ABRT = 1 << 7 // Abort
)

// DSTAT bits.
const (
	DSTAT_IID  = 1 << 0 // Illegal instruction detected
	DSTAT_SIR  = 1 << 2 // SCRIPTS interrupt instruction
	DSTAT_SSI  = 1 << 3 // SCRIPTS single-step interrupt
	DSTAT_ABRT = 1 << 4 // Aborted
	DSTAT_DFE  = 1 << 7 // DMA FIFO empty
)

// SSTAT1 bits.
const (
	SSTAT1_PAR = 1 << 0 // SCSI parity state
	SSTAT1_RST = 1 << 1 // SCSI bus reset is asserted
)

// CTEST4 bits.
const (
	CTEST4_FBLMask = 0x03   // DMA FIFO byte lane select
	CTEST4_FBL2    = 1 << 2 // Route CTEST6 to the selected FIFO byte lane
	CTEST4_SFWR    = 1 << 3 // SCSI FIFO write enable (SODL loads the FIFO)
	CTEST4_SLBE    = 1 << 4 // SCSI loopback mode enable
	CTEST4_CDIS    = 1 << 7 // Cache burst disable
)

// CTEST5 bits.
const (
	CTEST5_DACK = 1 << 0 // DMA acknowledges SCSI DMA request
	CTEST5_DREQ = 1 << 1 // SCSI requests DMA transfer
	CTEST5_DDIR = 1 << 3 // DMA direction (1=SCSI to host)
)

// CTEST8 bits.
const (
	CTEST8_CLF = 1 << 2 // Clear DMA and SCSI FIFOs
	CTEST8_FLF = 1 << 3 // Flush DMA FIFO
)

// DMODE bits.
const (
	DMODE_MAN = 1 << 0 // Manual start mode
	DMODE_FAM = 1 << 2 // Fixed address mode (no DNAD increment)
	DMODE_FC1 = 1 << 4 // Value driven on FC1 when bus mastering
	DMODE_FC2 = 1 << 5 // Value driven on FC2 when bus mastering

	DMODE_BurstLen1 = 0x00      // 1-transfer burst
	DMODE_BurstLen2 = 1 << 6    // 2-transfer burst
	DMODE_BurstLen4 = 1 << 7    // 4-transfer burst
	DMODE_BurstLen8 = 0x03 << 6 // 8-transfer burst
)

// DCNTL bits.
const (
	DCNTL_COM  = 1 << 0 // 53C710 (non-compatibility) mode
	DCNTL_STD  = 1 << 2 // Start DMA operation (execute SCRIPT)
	DCNTL_LLM  = 1 << 3 // Low-level mode (no DMA or SCRIPTS)
	DCNTL_SSM  = 1 << 4 // SCRIPTS single-step mode
	DCNTL_EA   = 1 << 5 // Enable Ack
	DCNTL_CFD2 = 0x00   // SCLK 37.50-50.00 MHz divisor
)

// DIEN bits.
const (
	DIEN_ILD  = 1 << 0 // Illegal instruction detected
	DIEN_WTD  = 1 << 1 // Watchdog timeout detected
	DIEN_SIR  = 1 << 2 // SCRIPTS interrupt instruction
	DIEN_SSI  = 1 << 3 // SCRIPTS step interrupt
	DIEN_ABRT = 1 << 4 // Aborted
	DIEN_BF   = 1 << 5 // Bus fault
)

// FIFOSize is the depth of each DMA FIFO byte lane.
const FIFOSize = 16

// FIFOLanes is the number of byte-wide DMA FIFO lanes.
const FIFOLanes = 4

// ConfigReg reads one autoconfig register. Zorro boards present each
// config nibble inverted, high nibble at the register offset and low
// nibble 0x100 above it.
func ConfigReg(read8 func(addr uint32) uint8, base uint32, reg uint32) uint8 {
	hi := ^read8(base + OffsetAutoconfig + reg)
	lo := ^read8(base + OffsetAutoconfig + reg + 0x100)
	return (hi & 0xf0) | (lo >> 4)
}
