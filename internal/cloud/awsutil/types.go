package awsutil

type SpotPrice struct {
	InstanceType string
	AZ           string
	Price        float64
}
