package bluetooth

import "fmt"

// LookupManufacturer returns a human-readable name for a Bluetooth SIG company ID.
// See: https://www.bluetooth.com/specifications/assigned-numbers/
func LookupManufacturer(companyID uint16) string {
	if name, ok := companyNames[companyID]; ok {
		return name
	}
	return ""
}

// DescribeCompany formats a company id as "0x0059 (Nordic)".
func DescribeCompany(companyID uint16) string {
	if name := LookupManufacturer(companyID); name != "" {
		return fmt.Sprintf("0x%04X (%s)", companyID, name)
	}
	return fmt.Sprintf("0x%04X", companyID)
}

var companyNames = map[uint16]string{
	0x004C: "Apple",
	0x0006: "Microsoft",
	0x00E0: "Google",
	0x0075: "Samsung",
	0x0059: "Nordic",
	0x000D: "Texas Inst.",
	0x0002: "Intel",
	0x000F: "Broadcom",
	0x000A: "Qualcomm",
	0x015D: "Espressif",
	0xFFFF: "Test",
}
