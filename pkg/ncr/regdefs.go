package ncr

// BitNames lists per-bit signal names, index 0 = least-significant bit.
type BitNames []string

var (
	bitsSCNTL0 = BitNames{"TRG", "AAP", "EPG", "EPC", "WATN/", "START", "ARB0", "ARB1"}
	bitsSCNTL1 = BitNames{"RES0", "RES1", "AESP", "RST", "CON", "FSR", "ADB", "EXC"}
	bitsSIEN   = BitNames{"PAR", "RST/", "UDC", "SGE", "SEL", "STO", "FCMP", "M/A"}
	bitsSBCL   = BitNames{"I/O", "C/D", "MSG", "ATN", "SEL", "BSY", "ACK", "REQ"}
	bitsDSTAT  = BitNames{"IID", "WTD", "SIR", "SSI", "ABRT", "RF", "RES6", "DFE"}
	bitsSSTAT0 = BitNames{"PAR", "RST/", "UDC", "SGE", "SEL", "STO", "FCMP", "M/A"}
	bitsSSTAT1 = BitNames{"SDP/", "RST/", "WOA", "LOA", "AIP", "OLF", "ORF", "ILF"}
	bitsSSTAT2 = BitNames{"I/O", "C/D", "MSG", "SDP", "FF0", "FF1", "FF2", "FF3"}
	bitsCTEST0 = BitNames{"DDIR", "RES1", "ERF", "HSC", "EAN", "GRP", "BTD", "RES7"}
	bitsCTEST2 = BitNames{"DACK", "DREQ", "TEOP", "DFP", "SFP", "SOFF", "SIGP", "RES7"}
	bitsCTEST4 = BitNames{"FBL0", "FBL1", "FBL2", "SFWR", "SLBE", "SZM", "ZMOD", "MUX"}
	bitsCTEST5 = BitNames{"DACK", "DREQ", "EOP", "DDIR", "MASR", "ROFF", "BBCK", "ADCK"}
	bitsCTEST7 = BitNames{"DIFF", "TT1", "EVP", "DFP", "NOTIME", "SC0", "SC1", "CDIS"}
	bitsISTAT  = BitNames{"DIP", "SIP", "RSV2", "CON", "RSV4", "SIOP", "RST", "ABRT"}
	bitsCTEST8 = BitNames{"SM", "FM", "CLF", "FLF", "V0", "V1", "V2", "V3"}
	bitsDMODE  = BitNames{"MAN", "U0", "FAM", "PD", "FC1", "FC2", "BL0", "BL1"}
	bitsDIEN   = BitNames{"HD", "WTD", "SIR", "SSI", "ABRT", "BF", "RES6", "RES7"}
	bitsDCNTL  = BitNames{"COM", "FA", "STD", "LLM", "SSM", "EA", "CF0", "CF1"}
)

// DataPins names the 53C710 host data bus pins, for walking-bit reports.
var DataPins = BitNames{
	"D0", "D1", "D2", "D3", "D4", "D5", "D6", "D7",
	"D8", "D9", "D10", "D11", "D12", "D13", "D14", "D15",
	"D16", "D17", "D18", "D19", "D20", "D21", "D22", "D23",
	"D24", "D25", "D26", "D27", "D28", "D29", "D30", "D31",
}

// SCSIDataPins names the SCSI data lines plus the parity line.
var SCSIDataPins = BitNames{
	"SCDAT0", "SCDAT1", "SCDAT2", "SCDAT3",
	"SCDAT4", "SCDAT5", "SCDAT6", "SCDAT7",
	"SCDATP",
}

// SCSIControlPins names the SCSI control lines as latched by SOCL/SBCL.
var SCSIControlPins = BitNames{
	"SCTRL_IO", "SCTRL_CD", "SCTRL_MSG", "SCTRL_ATN",
	"SCTRL_SEL", "SCTRL_BSY", "SCTRL_ACK", "SCTRL_REQ",
}

// RegDef describes one addressable register for display purposes.
type RegDef struct {
	Offset uint32
	Size   int // bytes: 1, 3 or 4
	Show   bool
	Name   string
	Desc   string
	Bits   BitNames
}

// RegDefs is the static register definition table, in datasheet order.
// CTEST3 and CTEST6 are FIFO ports whose reads have side effects, so
// they are excluded from display.
var RegDefs = []RegDef{
	{RegSCNTL0, 1, true, "SCNTL0", "SCSI control 0", bitsSCNTL0},
	{RegSCNTL1, 1, true, "SCNTL1", "SCSI control 1", bitsSCNTL1},
	{RegSDID, 1, true, "SDID", "SCSI destination ID", nil},
	{RegSIEN, 1, true, "SIEN", "SCSI IRQ enable", bitsSIEN},
	{RegSCID, 1, true, "SCID", "SCSI chip ID", nil},
	{RegSXFER, 1, true, "SXFER", "SCSI transfer", nil},
	{RegSODL, 1, true, "SODL", "SCSI output data latch", nil},
	{RegSOCL, 1, true, "SOCL", "SCSI output control latch", bitsSBCL},
	{RegSFBR, 1, true, "SFBR", "SCSI first byte received", nil},
	{RegSIDL, 1, true, "SIDL", "SCSI input data latch", nil},
	{RegSBDL, 1, true, "SBDL", "SCSI bus data lines", nil},
	{RegSBCL, 1, true, "SBCL", "SCSI bus control lines", bitsSBCL},
	{RegDSTAT, 1, true, "DSTAT", "DMA status", bitsDSTAT},
	{RegSSTAT0, 1, true, "SSTAT0", "SCSI status 0", bitsSSTAT0},
	{RegSSTAT1, 1, true, "SSTAT1", "SCSI status 1", bitsSSTAT1},
	{RegSSTAT2, 1, true, "SSTAT2", "SCSI status 2", bitsSSTAT2},
	{RegDSA, 4, true, "DSA", "Data structure address", nil},
	{RegCTEST0, 1, true, "CTEST0", "Chip test 0", bitsCTEST0},
	{RegCTEST1, 1, true, "CTEST1", "Chip test 1 7-4=FIFO_Empty 3-0=FIFO_Full", nil},
	{RegCTEST2, 1, true, "CTEST2", "Chip test 2", bitsCTEST2},
	{RegCTEST3, 1, false, "CTEST3", "Chip test 3 SCSI FIFO", nil},
	{RegCTEST4, 1, true, "CTEST4", "Chip test 4", bitsCTEST4},
	{RegCTEST5, 1, true, "CTEST5", "Chip test 5", bitsCTEST5},
	{RegCTEST6, 1, false, "CTEST6", "Chip test 6 DMA FIFO", nil},
	{RegCTEST7, 1, true, "CTEST7", "Chip test 7", bitsCTEST7},
	{RegTEMP, 4, true, "TEMP", "Temporary Stack", nil},
	{RegDFIFO, 1, true, "DFIFO", "DMA FIFO", nil},
	{RegISTAT, 1, true, "ISTAT", "Interrupt Status", bitsISTAT},
	{RegCTEST8, 1, true, "CTEST8", "Chip test 8", bitsCTEST8},
	{RegLCRC, 1, true, "LCRC", "Longitudinal parity", nil},
	{RegDBC, 3, true, "DBC", "DMA byte counter", nil},
	{RegDCMD, 1, true, "DCMD", "DMA command", nil},
	{RegDNAD, 4, true, "DNAD", "DMA next address for data", nil},
	{RegDSP, 4, true, "DSP", "DMA SCRIPTS pointer", nil},
	{RegDSPS, 4, true, "DSPS", "DMA SCRIPTS pointer save", nil},
	{RegSCRATCH, 4, true, "SCRATCH", "General purpose scratch pad", nil},
	{RegDMODE, 1, true, "DMODE", "DMA mode", bitsDMODE},
	{RegDIEN, 1, true, "DIEN", "DMA interrupt enable", bitsDIEN},
	{RegDWT, 1, true, "DWT", "DMA watchdog timer", nil},
	{RegDCNTL, 1, true, "DCNTL", "DMA control", bitsDCNTL},
	{RegADDER, 4, true, "ADDER", "Sum output of internal adder", nil},
}

// FormatBits returns the names of the set bits in value, space-prefixed,
// for appending to a register dump line.
func FormatBits(bits BitNames, value uint32) string {
	s := ""
	for bit := 0; value != 0 && bit < len(bits); bit++ {
		if value&1 != 0 {
			s += " " + bits[bit]
		}
		value >>= 1
	}
	return s
}
