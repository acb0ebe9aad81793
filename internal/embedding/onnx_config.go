package embedding

// ONNX embedder defaults, sized for all-MiniLM-L6-v2 with a pooled output.
const (
	DefaultONNXDimensions = 384
	DefaultONNXMaxTokens  = 256
	DefaultONNXOutputName = "output"
)

// ONNXConfig holds configuration for the ONNX embedder.
type ONNXConfig struct {
	ModelPath   string
	LibraryPath string // onnxruntime shared library; empty uses the platform default
	OutputName  string
	Dimensions  int
	MaxTokens   int
}

func (c *ONNXConfig) applyDefaults() {
	if c.Dimensions <= 0 {
		c.Dimensions = DefaultONNXDimensions
	}
	if c.MaxTokens <= 2 {
		c.MaxTokens = DefaultONNXMaxTokens
	}
	if c.OutputName == "" {
		c.OutputName = DefaultONNXOutputName
	}
}
