package cloud

// VPC is a virtual private network in one region.
type VPC struct {
	ProviderCode string `json:"provider_code" db:"provider_code"`
	RegionID     string `json:"region_id" db:"region_id"`
	VPCID        string `json:"vpc_id" db:"vpc_id"`
	VPCName      string `json:"vpc_name" db:"vpc_name"`
	CIDRBlock    string `json:"cidr_block" db:"cidr_block"`
	IsDefault    bool   `json:"is_default" db:"is_default"`
}

// VSwitch is a subnet of a VPC pinned to one zone. EC2 calls it a subnet.
type VSwitch struct {
	ProviderCode string `json:"provider_code" db:"provider_code"`
	RegionID     string `json:"region_id" db:"region_id"`
	VPCID        string `json:"vpc_id" db:"vpc_id"`
	VSwitchID    string `json:"vswitch_id" db:"vswitch_id"`
	VSwitchName  string `json:"vswitch_name" db:"vswitch_name"`
	CIDRBlock    string `json:"cidr_block" db:"cidr_block"`
	ZoneID       string `json:"zone_id" db:"zone_id"`
}

// SecurityGroup is a vendor firewall group.
type SecurityGroup struct {
	ProviderCode      string `json:"provider_code" db:"provider_code"`
	RegionID          string `json:"region_id" db:"region_id"`
	VPCID             string `json:"vpc_id" db:"vpc_id"`
	SecurityGroupID   string `json:"security_group_id" db:"security_group_id"`
	SecurityGroupName string `json:"security_group_name" db:"security_group_name"`
	Description       string `json:"description" db:"description"`
}

// Image is a bootable system image.
type Image struct {
	ImageID      string `json:"image_id"`
	ImageName    string `json:"image_name"`
	OSType       string `json:"os_type"`
	Architecture string `json:"architecture"`
}

// ImageQuery selects images in a region. Empty OSType and Architecture
// match everything.
type ImageQuery struct {
	RegionID     string
	OSType       string
	Architecture string
}
