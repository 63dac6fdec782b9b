package main

// General API documentation for swaggo. Run `make swagger-gen` to regenerate docs/.
//
// @title           ragd API
// @version         1.0
// @description     Retrieval-augmented answers over local documents with a single managed model runtime.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
