package transfers

type RequestType uint8

const (
	RequestTypeVideoInterfaceSetRequest RequestType = 0b00100001
	RequestTypeDataEndpointSetRequest   RequestType = 0b00100010
	RequestTypeVideoInterfaceGetRequest RequestType = 0b10100001
	RequestTypeDataEndpointGetRequest   RequestType = 0b10100010
)

type RequestCode uint8

const (
	RequestCodeUndefined RequestCode = 0x00
	RequestCodeSetCur    RequestCode = 0x01
	RequestCodeGetCur    RequestCode = 0x81
	RequestCodeGetMin    RequestCode = 0x82
	RequestCodeGetMax    RequestCode = 0x83
	RequestCodeGetRes    RequestCode = 0x84
	RequestCodeGetLen    RequestCode = 0x85
	RequestCodeGetInfo   RequestCode = 0x86
	RequestCodeGetDef    RequestCode = 0x87
)

type VideoStreamingInterfaceControlSelector uint8

const (
	VideoStreamingInterfaceControlSelectorUndefined                VideoStreamingInterfaceControlSelector = 0x00
	VideoStreamingInterfaceControlSelectorProbeControl             VideoStreamingInterfaceControlSelector = 0x01
	VideoStreamingInterfaceControlSelectorCommitControl            VideoStreamingInterfaceControlSelector = 0x02
	VideoStreamingInterfaceControlSelectorStillProbeControl        VideoStreamingInterfaceControlSelector = 0x03
	VideoStreamingInterfaceControlSelectorStillCommitControl       VideoStreamingInterfaceControlSelector = 0x04
	VideoStreamingInterfaceControlSelectorStillImageTriggerControl VideoStreamingInterfaceControlSelector = 0x05
	VideoStreamingInterfaceControlSelectorStreamErrorCodeControl   VideoStreamingInterfaceControlSelector = 0x06
)
