// internal/writer/types.go
package writer

// endpointClient is the exact contract the status writer uses.
// IMPORTANT: There must be NO other version of this interface anywhere.
type endpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

// StatusPlan is where slave status blocks land in status memory.
type StatusPlan struct {
	Endpoint string
	UnitID   uint8
	// BaseSlot is the block of slave 1; slave n owns block BaseSlot+n-1.
	BaseSlot uint16
}
