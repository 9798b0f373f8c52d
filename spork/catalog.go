package spork

import (
	"fmt"
	"sort"
)

// ID identifies a spork. Ids come from a fixed, non-contiguous range and are
// never reused once retired.
type ID int32

const (
	// StartID is the lowest id a spork may ever carry.
	StartID ID = 10001

	// EndID is the highest id currently defined.
	EndID ID = 10059

	// UnknownID is returned by IDOf for names outside the catalog.
	UnknownID ID = -1

	// UnknownName is returned by NameOf for ids outside the catalog.
	UnknownName = "Unknown"

	// UnknownValue is the sentinel value resolved for ids outside the
	// catalog.
	UnknownValue int64 = -1
)

// String returns the catalog name of the id, or "Unknown".
func (i ID) String() string {
	return NameOf(i)
}

// ThresholdKind selects what a spork value is compared against when it is
// interpreted as an on/off switch.
type ThresholdKind uint8

const (
	// ThresholdTime compares the value against the current unix time.
	ThresholdTime ThresholdKind = iota

	// ThresholdHeight compares the value against the best block height.
	ThresholdHeight
)

// String returns a human readable name for the threshold kind.
func (k ThresholdKind) String() string {
	switch k {
	case ThresholdTime:
		return "time"
	case ThresholdHeight:
		return "height"
	default:
		return fmt.Sprintf("<unknown threshold %d>", uint8(k))
	}
}

// CatalogEntry is a compiled-in spork definition.
type CatalogEntry struct {
	ID        ID
	Name      string
	Default   int64
	Threshold ThresholdKind
}

const (
	// Far-future timestamp used as the "off" default of feature sporks
	// (2099-01-01).
	offTimestamp int64 = 4070908800

	// Block heights at which the tiered collateral schedules end.
	collatBlockV1 int64 = 959999
	collatBlockV2 int64 = 9999999
)

var catalog = []CatalogEntry{
	{10001, "SPORK_2_SWIFTTX", 978307200, ThresholdTime},
	{10002, "SPORK_3_SWIFTTX_BLOCK_FILTERING", 1424217600, ThresholdTime},
	{10004, "SPORK_5_MAX_VALUE", 1000, ThresholdTime},
	{10006, "SPORK_7_MASTERNODE_SCANNING", 978307200, ThresholdTime},
	{10007, "SPORK_8_MASTERNODE_PAYMENT_ENFORCEMENT", offTimestamp, ThresholdTime},
	{10008, "SPORK_9_MASTERNODE_BUDGET_ENFORCEMENT", offTimestamp, ThresholdTime},
	{10009, "SPORK_10_MASTERNODE_PAY_UPDATED_NODES", offTimestamp, ThresholdTime},
	{10010, "SPORK_11_LOCK_INVALID_UTXO", offTimestamp, ThresholdHeight},
	{10012, "SPORK_13_ENABLE_SUPERBLOCKS", offTimestamp, ThresholdTime},
	{10013, "SPORK_14_NEW_PROTOCOL_ENFORCEMENT", offTimestamp, ThresholdTime},
	{10014, "SPORK_15_NEW_PROTOCOL_ENFORCEMENT_2", offTimestamp, ThresholdTime},
	{10015, "SPORK_16_ZEROCOIN_MAINTENANCE_MODE", offTimestamp, ThresholdTime},
	{10016, "SPORK_17_CURRENT_MN_COLLATERAL", 2000, ThresholdTime},
	{10017, "SPORK_18_LAST_2000_COLLAT_BLOCK", collatBlockV1, ThresholdTime},
	{10018, "SPORK_19_LAST_2400_COLLAT_BLOCK", collatBlockV1, ThresholdTime},
	{10019, "SPORK_20_LAST_2550_COLLAT_BLOCK", collatBlockV1, ThresholdTime},
	{10020, "SPORK_21_LAST_2750_COLLAT_BLOCK", collatBlockV1, ThresholdTime},
	{10021, "SPORK_22_LAST_2950_COLLAT_BLOCK", collatBlockV1, ThresholdTime},
	{10022, "SPORK_23_LAST_3150_COLLAT_BLOCK", collatBlockV1, ThresholdTime},
	{10023, "SPORK_24_LAST_3350_COLLAT_BLOCK", collatBlockV1, ThresholdTime},
	{10024, "SPORK_25_LAST_3600_COLLAT_BLOCK", collatBlockV1, ThresholdTime},
	{10025, "SPORK_26_LAST_3850_COLLAT_BLOCK", collatBlockV1, ThresholdTime},
	{10026, "SPORK_27_LAST_4150_COLLAT_BLOCK", collatBlockV1, ThresholdTime},
	{10027, "SPORK_28_LAST_4400_COLLAT_BLOCK", collatBlockV1, ThresholdTime},
	{10028, "SPORK_29_LAST_4750_COLLAT_BLOCK", collatBlockV1, ThresholdTime},
	{10029, "SPORK_30_LAST_5050_COLLAT_BLOCK", collatBlockV1, ThresholdTime},
	{10030, "SPORK_31_LAST_5400_COLLAT_BLOCK", collatBlockV1, ThresholdTime},
	{10031, "SPORK_32_LAST_5800_COLLAT_BLOCK", collatBlockV1, ThresholdTime},
	{10032, "SPORK_33_LAST_6200_COLLAT_BLOCK", collatBlockV1, ThresholdTime},
	{10033, "SPORK_34_LAST_6600_COLLAT_BLOCK", collatBlockV1, ThresholdTime},
	{10034, "SPORK_35_MOVE_REWARDS", 4200, ThresholdTime},
	{10035, "SPORK_36_LAST_2200_COLLAT_BLOCK", collatBlockV1, ThresholdTime},
	{10036, "SPORK_37_LAST_25000_COLLAT_BLOCK", collatBlockV1, ThresholdTime},
	{10037, "SPORK_38_LAST_26250_COLLAT_BLOCK", collatBlockV2, ThresholdTime},
	{10038, "SPORK_39_LAST_27575_COLLAT_BLOCK", collatBlockV2, ThresholdTime},
	{10039, "SPORK_40_LAST_28950_COLLAT_BLOCK", collatBlockV2, ThresholdTime},
	{10040, "SPORK_41_LAST_30400_COLLAT_BLOCK", collatBlockV2, ThresholdTime},
	{10041, "SPORK_42_LAST_31900_COLLAT_BLOCK", collatBlockV2, ThresholdTime},
	{10042, "SPORK_43_LAST_33500_COLLAT_BLOCK", collatBlockV2, ThresholdTime},
	{10043, "SPORK_44_LAST_35175_COLLAT_BLOCK", collatBlockV2, ThresholdTime},
	{10044, "SPORK_45_LAST_36925_COLLAT_BLOCK", collatBlockV2, ThresholdTime},
	{10045, "SPORK_46_LAST_38775_COLLAT_BLOCK", collatBlockV2, ThresholdTime},
	{10046, "SPORK_47_LAST_40725_COLLAT_BLOCK", collatBlockV2, ThresholdTime},
	{10047, "SPORK_48_LAST_42750_COLLAT_BLOCK", collatBlockV2, ThresholdTime},
	{10048, "SPORK_49_LAST_44900_COLLAT_BLOCK", collatBlockV2, ThresholdTime},
	{10049, "SPORK_50_LAST_47150_COLLAT_BLOCK", collatBlockV2, ThresholdTime},
	{10050, "SPORK_51_LAST_49500_COLLAT_BLOCK", collatBlockV2, ThresholdTime},
	{10051, "SPORK_52_LAST_51975_COLLAT_BLOCK", collatBlockV2, ThresholdTime},
	{10052, "SPORK_53_LAST_54575_COLLAT_BLOCK", collatBlockV2, ThresholdTime},
	{10053, "SPORK_54_LAST_57304_COLLAT_BLOCK", collatBlockV2, ThresholdTime},
	{10054, "SPORK_55_LAST_60169_COLLAT_BLOCK", collatBlockV2, ThresholdTime},
	{10055, "SPORK_56_LAST_63175_COLLAT_BLOCK", collatBlockV2, ThresholdTime},
	{10056, "SPORK_57_LAST_66325_COLLAT_BLOCK", collatBlockV2, ThresholdTime},
	{10057, "SPORK_58_LAST_69650_COLLAT_BLOCK", collatBlockV2, ThresholdTime},
	{10058, "SPORK_59_CURRENT_MN_COLLATERAL", collatBlockV2, ThresholdTime},
	{10059, "SPORK_60_CURRENT_MN_COLLATERAL", collatBlockV2, ThresholdTime},
}

var (
	entriesByID   = make(map[ID]CatalogEntry, len(catalog))
	entriesByName = make(map[string]CatalogEntry, len(catalog))
)

func init() {
	sort.Slice(catalog, func(i, j int) bool {
		return catalog[i].ID < catalog[j].ID
	})

	for _, entry := range catalog {
		if _, ok := entriesByID[entry.ID]; ok {
			panic(fmt.Sprintf("duplicate spork id %d", entry.ID))
		}
		if _, ok := entriesByName[entry.Name]; ok {
			panic(fmt.Sprintf("duplicate spork name %s", entry.Name))
		}

		entriesByID[entry.ID] = entry
		entriesByName[entry.Name] = entry
	}
}

// Lookup returns the catalog entry for id.
func Lookup(id ID) (CatalogEntry, bool) {
	entry, ok := entriesByID[id]
	return entry, ok
}

// IsKnown reports whether id is part of the catalog.
func IsKnown(id ID) bool {
	_, ok := entriesByID[id]
	return ok
}

// NameOf returns the catalog name of id, or UnknownName.
func NameOf(id ID) string {
	if entry, ok := entriesByID[id]; ok {
		return entry.Name
	}

	return UnknownName
}

// IDOf returns the id registered under name, or UnknownID.
func IDOf(name string) ID {
	if entry, ok := entriesByName[name]; ok {
		return entry.ID
	}

	return UnknownID
}

// DefaultOf returns the compiled-in default value of id, or UnknownValue.
func DefaultOf(id ID) int64 {
	if entry, ok := entriesByID[id]; ok {
		return entry.Default
	}

	return UnknownValue
}

// Entries returns a copy of the catalog in ascending id order.
func Entries() []CatalogEntry {
	entries := make([]CatalogEntry, len(catalog))
	copy(entries, catalog)

	return entries
}
