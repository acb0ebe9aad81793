package embedding

import "testing"

func TestONNXConfig_ApplyDefaults(t *testing.T) {
	cfg := ONNXConfig{ModelPath: "model.onnx"}
	cfg.applyDefaults()
	if cfg.Dimensions != DefaultONNXDimensions || cfg.MaxTokens != DefaultONNXMaxTokens || cfg.OutputName != DefaultONNXOutputName {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	cfg = ONNXConfig{Dimensions: 768, MaxTokens: 512, OutputName: "sentence_embedding"}
	cfg.applyDefaults()
	if cfg.Dimensions != 768 || cfg.MaxTokens != 512 || cfg.OutputName != "sentence_embedding" {
		t.Errorf("explicit values overwritten: %+v", cfg)
	}
}
