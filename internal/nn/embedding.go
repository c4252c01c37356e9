package nn

import "github.com/cognito-lm/cognito/internal/tensor"

// Embedding maps int32 ids to rows of a [numEmbeddings, dim] table
// initialized from N(0, 1).
type Embedding[B tensor.Backend] struct {
	NumEmbeddings int
	EmbeddingDim  int
	weight        *Parameter[B]
	backend       B
}

// NewEmbedding creates an embedding table.
func NewEmbedding[B tensor.Backend](numEmbeddings, embeddingDim int, backend B) *Embedding[B] {
	return &Embedding[B]{
		NumEmbeddings: numEmbeddings,
		EmbeddingDim:  embeddingDim,
		weight:        NewParameter("weight", Normal(0, 1, tensor.Shape{numEmbeddings, embeddingDim}, backend)),
		backend:       backend,
	}
}

// Forward looks up ids of any shape and appends the embedding dimension.
func (e *Embedding[B]) Forward(ids *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	raw := e.backend.Embedding(e.weight.Tensor().Raw(), ids.Raw())
	return tensor.New[float32, B](raw, e.backend)
}

// Parameters returns [weight].
func (e *Embedding[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{e.weight}
}
