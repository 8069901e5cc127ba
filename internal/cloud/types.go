package cloud

// FixedIP is one address assignment on a port.
type FixedIP struct {
	IPAddress string `json:"ip_address"`
	SubnetID  string `json:"subnet_id,omitempty"`
}

// Port is a network interface resource as reported by the control plane.
type Port struct {
	ID        string    `json:"id"`
	NetworkID string    `json:"network_id"`
	DeviceID  string    `json:"device_id"` // empty when detached
	Status    string    `json:"status,omitempty"`
	FixedIPs  []FixedIP `json:"fixed_ips"`
}

// Address returns the port's first assigned address, or "" when the fabric
// has not assigned one yet. Only the first address is meaningful for a hunt.
func (p Port) Address() string {
	if len(p.FixedIPs) == 0 {
		return ""
	}
	return p.FixedIPs[0].IPAddress
}

// Attached reports whether the port is bound to a device.
func (p Port) Attached() bool {
	return p.DeviceID != ""
}

// Network is a network resource, used by the connectivity diagnostic.
type Network struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Server is a compute instance, used by the connectivity diagnostic.
type Server struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type portEnvelope struct {
	Port Port `json:"port"`
}

type portListEnvelope struct {
	Ports []Port `json:"ports"`
}

type networkListEnvelope struct {
	Networks []Network `json:"networks"`
}

type serverEnvelope struct {
	Server Server `json:"server"`
}

type createPortRequest struct {
	Port createPortBody `json:"port"`
}

type createPortBody struct {
	NetworkID    string `json:"network_id"`
	AdminStateUp bool   `json:"admin_state_up"`
}

type attachRequest struct {
	InterfaceAttachment attachBody `json:"interfaceAttachment"`
}

type attachBody struct {
	PortID string `json:"port_id"`
}
