package model

import (
	"github.com/cognito-lm/cognito/internal/nn"
	"github.com/cognito-lm/cognito/internal/tensor"
)

const normEps = 1e-5

// Block is one pre-norm transformer layer:
//
//	h = x + Dropout(Attention(RMSNorm(x), mask))
//	y = h + Dropout(FFN(RMSNorm(h)))
type Block[B tensor.Backend] struct {
	AttnNorm  *nn.RMSNorm[B]
	Attention *nn.MultiHeadAttention[B]
	FFNNorm   *nn.RMSNorm[B]
	FFN       *nn.FFN[B]
	attnDrop  *nn.Dropout[B]
	ffnDrop   *nn.Dropout[B]
}

// NewBlock creates a block for cfg. cfg must already be valid.
func NewBlock[B tensor.Backend](cfg Config, backend B) *Block[B] {
	return &Block[B]{
		AttnNorm:  nn.NewRMSNorm(cfg.DModel, normEps, backend),
		Attention: nn.NewMultiHeadAttention(cfg.DModel, cfg.NumHeads, cfg.Dropout, backend),
		FFNNorm:   nn.NewRMSNorm(cfg.DModel, normEps, backend),
		FFN:       nn.NewFFN(cfg.DModel, cfg.FFNDim(), backend),
		attnDrop:  nn.NewDropout(cfg.Dropout, backend),
		ffnDrop:   nn.NewDropout(cfg.Dropout, backend),
	}
}

// Forward maps x [B, T, D] to [B, T, D]. mask[b, i, j] is true where
// position i may attend to position j.
func (b *Block[B]) Forward(x *tensor.Tensor[float32, B], mask *tensor.Tensor[bool, B]) *tensor.Tensor[float32, B] {
	h := x.Add(b.attnDrop.Forward(b.Attention.Forward(b.AttnNorm.Forward(x), mask)))
	return h.Add(b.ffnDrop.Forward(b.FFN.Forward(b.FFNNorm.Forward(h))))
}

// SetTraining toggles every dropout in the block.
func (b *Block[B]) SetTraining(training bool) {
	b.Attention.SetTraining(training)
	b.attnDrop.SetTraining(training)
	b.ffnDrop.SetTraining(training)
}

// Parameters returns the block's parameters in a stable order.
func (b *Block[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	params = append(params, nn.Prefixed("attn_norm", b.AttnNorm.Parameters())...)
	params = append(params, nn.Prefixed("attention", b.Attention.Parameters())...)
	params = append(params, nn.Prefixed("ffn_norm", b.FFNNorm.Parameters())...)
	params = append(params, nn.Prefixed("ffn", b.FFN.Parameters())...)
	return params
}
