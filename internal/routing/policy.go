package routing

// DefaultArchiveThreshold approximates how many recent blocks a full node
// keeps dense state for. Reads deeper than this go to the archive tier.
const DefaultArchiveThreshold uint64 = 128

// BlockParam locates the block reference inside a method's params.
type BlockParam struct {
	// Index is the position of the block reference in params.
	Index int
	// CallObject means params[0] may be a transaction object whose own
	// blockNumber member overrides the positional reference.
	CallObject bool
}

// MethodTable maps each historical-read method to its block parameter.
// Methods absent from the table are always served by the full tier.
type MethodTable map[string]BlockParam

// DefaultMethodTable returns the historical-read methods routed by depth.
//
// Log, receipt and trace queries can also target pruned state but are left
// out on purpose; extending tiering to them is a table change.
func DefaultMethodTable() MethodTable {
	return MethodTable{
		"eth_getBalance":   {Index: 1},
		"eth_getCode":      {Index: 1},
		"eth_getStorageAt": {Index: 2},
		"eth_call":         {Index: 1, CallObject: true},
	}
}

// Policy is the tuning applied to one chain.
type Policy struct {
	ArchiveThreshold uint64
	Methods          MethodTable
}

// DefaultPolicy returns the 128-block threshold with the default method table.
func DefaultPolicy() Policy {
	return Policy{
		ArchiveThreshold: DefaultArchiveThreshold,
		Methods:          DefaultMethodTable(),
	}
}
