package envvar

const (
	// DlrshimEnv is the environment variable used to determine the environment
	DlrshimEnv = "DLRSHIM_ENV"

	// DlrshimModelsPath overrides the directory models are stored in
	DlrshimModelsPath = "DLRSHIM_MODELS_PATH"

	// DlrshimHTTPAddr is the environment variable used to determine the HTTP listen address
	DlrshimHTTPAddr = "DLRSHIM_HTTP_ADDR"

	// DlrshimGRPCAddr is the environment variable used to determine the gRPC listen address
	DlrshimGRPCAddr = "DLRSHIM_GRPC_ADDR"

	// DlrshimLogLevel sets the minimum log level (debug, info, warn, error)
	DlrshimLogLevel = "DLRSHIM_LOG_LEVEL"

	// HuggingFaceToken authenticates HuggingFace downloads
	HuggingFaceToken = "HF_TOKEN"
)
