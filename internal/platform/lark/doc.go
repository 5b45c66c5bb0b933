// Package lark implements the record store on a Lark/Feishu bitable.
//
// Work items are bitable records. The status, result, label and attachment
// columns are named by config.StoreConfig; attachments are drive media
// referenced by their file_token. All SDK traffic goes through RecordAPI so
// the store can be exercised without network access.
package lark
